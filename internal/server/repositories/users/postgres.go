package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/userauth/internal/common"
	"github.com/dmitrijs2005/userauth/internal/dbx"
	"github.com/dmitrijs2005/userauth/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const selectUser = `SELECT id, username, email, fullname, avatar_url, cover_image_url,
		 password_hash, COALESCE(refresh_token, ''), created_at, updated_at
		 FROM users`

type PostgresRepository struct {
	db         dbx.DBTX
	bcryptCost int
}

func NewPostgresRepository(db dbx.DBTX, bcryptCost int) *PostgresRepository {
	return &PostgresRepository{db: db, bcryptCost: bcryptCost}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User, password string) (*models.User, error) {
	hash, err := HashPassword(password, r.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	query :=
		`INSERT INTO users (username, email, fullname, avatar_url, cover_image_url, password_hash)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at
		 `

	err = r.db.QueryRowContext(ctx, query,
		user.UserName, user.Email, user.FullName, user.AvatarURL, user.CoverImageURL, hash).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	user.PasswordHash = hash
	return user, nil
}

func (r *PostgresRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error) {
	query := selectUser + `
		 WHERE username = $1 OR email = $2
		 LIMIT 1
		 `
	return r.scanUser(r.db.QueryRowContext(ctx, query, username, email))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := selectUser + `
		 WHERE id = $1
		 `
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetPublicByID(ctx context.Context, id string) (*models.PublicUser, error) {
	query :=
		`SELECT id, username, email, fullname, avatar_url, cover_image_url, created_at, updated_at
		 FROM users
		 WHERE id = $1
		 `

	u := &models.PublicUser{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.UserName, &u.Email, &u.FullName, &u.AvatarURL, &u.CoverImageURL, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return u, nil
}

func (r *PostgresRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	query :=
		`UPDATE users SET refresh_token = $2, updated_at = now()
		 WHERE id = $1
		 `
	return r.execOne(ctx, query, id, token)
}

func (r *PostgresRepository) ClearRefreshToken(ctx context.Context, id string) error {
	query :=
		`UPDATE users SET refresh_token = NULL, updated_at = now()
		 WHERE id = $1
		 `
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) RotateRefreshToken(ctx context.Context, id, current, next string) error {
	query :=
		`UPDATE users SET refresh_token = $3, updated_at = now()
		 WHERE id = $1 AND refresh_token = $2
		 `
	return r.execOne(ctx, query, id, current, next)
}

// execOne runs an UPDATE that must hit exactly one row.
func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}

func (r *PostgresRepository) scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.UserName, &u.Email, &u.FullName, &u.AvatarURL, &u.CoverImageURL,
		&u.PasswordHash, &u.RefreshToken, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return u, nil
}
