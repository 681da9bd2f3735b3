// Package services contains server-side business logic. UserService covers
// registration and the session lifecycle: login, refresh, logout and the
// current-user lookup.
package services

import (
	"database/sql"
	"time"

	"github.com/dmitrijs2005/userauth/internal/logging"
	"github.com/dmitrijs2005/userauth/internal/server/auth"
	"github.com/dmitrijs2005/userauth/internal/server/config"
	"github.com/dmitrijs2005/userauth/internal/server/events"
	"github.com/dmitrijs2005/userauth/internal/server/models"
	"github.com/dmitrijs2005/userauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/userauth/internal/server/storage"
)

// TokenIssuer mints and checks signed tokens. *auth.TokenService satisfies it.
type TokenIssuer interface {
	IssueAccessToken(userID string) (*auth.IssuedToken, error)
	IssueRefreshToken(userID string) (*auth.IssuedToken, error)
	Verify(token string, kind auth.Kind) (*auth.TokenClaims, error)
}

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
}

// CookieOptions tells the transport how to set the token cookies.
type CookieOptions struct {
	HTTPOnly bool
	Secure   bool
}

// Session is the outcome of a login or refresh. User is nil for refresh.
type Session struct {
	User   *models.PublicUser
	Tokens *TokenPair
	Cookie CookieOptions
}

type UserService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	tokens       TokenIssuer
	gateway      storage.Gateway
	publisher    events.Publisher
	logger       logging.Logger
	cookieSecure bool
	now          func() time.Time
}

func NewUserService(
	db *sql.DB,
	m repomanager.RepositoryManager,
	tokens TokenIssuer,
	gateway storage.Gateway,
	publisher events.Publisher,
	cfg *config.Config,
	logger logging.Logger,
) *UserService {
	return &UserService{
		db:           db,
		repomanager:  m,
		tokens:       tokens,
		gateway:      gateway,
		publisher:    publisher,
		logger:       logger.With("module", "users"),
		cookieSecure: cfg.CookieSecure,
		now:          time.Now,
	}
}

func (s *UserService) cookieOptions() CookieOptions {
	return CookieOptions{HTTPOnly: true, Secure: s.cookieSecure}
}

func (s *UserService) issuePair(userID string) (*TokenPair, error) {
	access, err := s.tokens.IssueAccessToken(userID)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefreshToken(userID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:           access.Value,
		AccessTokenExpiresAt:  access.ExpiresAt,
		RefreshToken:          refresh.Value,
		RefreshTokenExpiresAt: refresh.ExpiresAt,
	}, nil
}
