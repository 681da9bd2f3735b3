// Package users is the credential store: persistence of user records,
// password hashing and the stored refresh token.
package users

import (
	"context"

	"github.com/dmitrijs2005/userauth/internal/server/models"
)

// Repository defines the credential-store operations.
//
// Lookups return common.ErrorNotFound when nothing matches. Create returns
// common.ErrorAlreadyExists when username or email is taken.
type Repository interface {
	// Create hashes password and inserts user. ID and timestamps are filled
	// in on the returned value.
	Create(ctx context.Context, user *models.User, password string) (*models.User, error)

	// FindByUsernameOrEmail returns the user whose username equals username
	// or whose email equals email.
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error)

	GetByID(ctx context.Context, id string) (*models.User, error)

	// GetPublicByID reads only the non-secret columns.
	GetPublicByID(ctx context.Context, id string) (*models.PublicUser, error)

	// SetRefreshToken overwrites the stored refresh token. No other column
	// except updated_at is touched.
	SetRefreshToken(ctx context.Context, id, token string) error

	// ClearRefreshToken removes the stored refresh token.
	ClearRefreshToken(ctx context.Context, id string) error

	// RotateRefreshToken replaces current with next in a single statement.
	// It returns common.ErrorNotFound when the stored token is no longer
	// current, e.g. because a concurrent rotation won.
	RotateRefreshToken(ctx context.Context, id, current, next string) error
}
