// Package repomanager vends PostgreSQL-backed repositories and applies the
// embedded schema migrations with goose.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/userauth/internal/dbx"
	"github.com/dmitrijs2005/userauth/internal/server/migrations"
	"github.com/dmitrijs2005/userauth/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager binds repositories to a DBTX. The bcrypt cost
// is handed to every users repository it creates.
type PostgresRepositoryManager struct {
	bcryptCost int
}

// Users returns a users.Repository bound to db.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db, m.bcryptCost)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies all pending migrations.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

func NewPostgresRepositoryManager(bcryptCost int) *PostgresRepositoryManager {
	return &PostgresRepositoryManager{bcryptCost: bcryptCost}
}
