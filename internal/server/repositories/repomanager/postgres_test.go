package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/userauth/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) *sql.DB {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestUsers_BindsRepository(t *testing.T) {
	db := newDB(t)

	var m RepositoryManager = NewPostgresRepositoryManager(4)
	repo := m.Users(db)
	require.NotNil(t, repo)

	pg, ok := repo.(*users.PostgresRepository)
	require.True(t, ok)
	assert.NotNil(t, pg)
}

func TestRunMigrations(t *testing.T) {
	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	tests := []struct {
		name    string
		upErr   error
		wantErr bool
	}{
		{name: "success", upErr: nil},
		{name: "goose fails", upErr: errors.New("migrate failed"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newDB(t)
			var gotDir string
			gooseUpContext = func(ctx context.Context, got *sql.DB, dir string, opts ...goose.OptionsFunc) error {
				assert.Same(t, db, got)
				gotDir = dir
				return tt.upErr
			}

			err := NewPostgresRepositoryManager(4).RunMigrations(context.Background(), db)
			assert.Equal(t, ".", gotDir)
			if tt.wantErr {
				assert.ErrorIs(t, err, tt.upErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}
