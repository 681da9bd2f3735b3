package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/dmitrijs2005/userauth/internal/common"
	"github.com/dmitrijs2005/userauth/internal/server/auth"
	"github.com/dmitrijs2005/userauth/internal/server/models"
	"github.com/dmitrijs2005/userauth/internal/server/repositories/users"
)

const (
	msgUnauthorizedRequest = "Unauthorized request"
	msgInvalidRefreshToken = "Invalid refresh token"
	msgRefreshTokenUsed    = "Refresh token is expired or used"
	msgInvalidAccessToken  = "Invalid access token"
)

// Login checks the password of the user matching username or email and
// starts a new session. The stored refresh token is replaced, so a login
// ends any session opened earlier for the same user.
func (s *UserService) Login(ctx context.Context, username, email, password string) (*Session, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	email = strings.TrimSpace(email)

	if username == "" && email == "" {
		return nil, common.Validation("username or email is required")
	}
	if len(password) > users.MaxPasswordBytes {
		return nil, common.Unauthorized("Invalid user credentials")
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.FindByUsernameOrEmail(ctx, username, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NotFound("User does not exist")
		}
		return nil, common.Internal("Something went wrong while logging in", err)
	}

	if !users.VerifyPassword(user.PasswordHash, password) {
		return nil, common.Unauthorized("Invalid user credentials")
	}

	pair, err := s.issuePair(user.ID)
	if err != nil {
		return nil, common.Internal("Something went wrong while generating tokens", err)
	}

	if err := repo.SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return nil, common.Internal("Something went wrong while generating tokens", err)
	}

	s.logger.Info(ctx, "user logged in", "user_id", user.ID)
	return &Session{User: user.Public(), Tokens: pair, Cookie: s.cookieOptions()}, nil
}

// Logout drops the stored refresh token. It succeeds even when no token
// was stored.
func (s *UserService) Logout(ctx context.Context, userID string) error {
	if err := s.repomanager.Users(s.db).ClearRefreshToken(ctx, userID); err != nil {
		return common.Internal("Something went wrong while logging out", err)
	}
	s.logger.Info(ctx, "user logged out", "user_id", userID)
	return nil
}

// RefreshAccessToken exchanges a valid refresh token for a new pair. The
// presented token stops being valid once this returns successfully.
func (s *UserService) RefreshAccessToken(ctx context.Context, presented string) (*Session, error) {
	if strings.TrimSpace(presented) == "" {
		return nil, common.Unauthorized(msgUnauthorizedRequest)
	}

	claims, err := s.tokens.Verify(presented, auth.KindRefresh)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			s.logger.Info(ctx, "refresh token expired")
		} else {
			s.logger.Warn(ctx, "refresh token rejected", "error", err)
		}
		return nil, common.Unauthorized(msgInvalidRefreshToken)
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.Unauthorized(msgInvalidRefreshToken)
		}
		return nil, common.Internal("Something went wrong while refreshing the session", err)
	}

	if subtle.ConstantTimeCompare([]byte(user.RefreshToken), []byte(presented)) != 1 {
		s.logger.Warn(ctx, "stale refresh token presented", "user_id", user.ID)
		return nil, common.Unauthorized(msgRefreshTokenUsed)
	}

	pair, err := s.issuePair(user.ID)
	if err != nil {
		return nil, common.Internal("Something went wrong while generating tokens", err)
	}

	if err := repo.RotateRefreshToken(ctx, user.ID, presented, pair.RefreshToken); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.Unauthorized(msgRefreshTokenUsed)
		}
		return nil, common.Internal("Something went wrong while refreshing the session", err)
	}

	return &Session{Tokens: pair, Cookie: s.cookieOptions()}, nil
}

// Authenticate resolves an access token to the user ID it was issued for.
func (s *UserService) Authenticate(ctx context.Context, accessToken string) (string, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return "", common.Unauthorized(msgUnauthorizedRequest)
	}

	claims, err := s.tokens.Verify(accessToken, auth.KindAccess)
	if err != nil {
		s.logger.Debug(ctx, "access token rejected", "error", err)
		return "", common.Unauthorized(msgInvalidAccessToken)
	}
	return claims.UserID, nil
}

// CurrentUser returns the sanitized record of an authenticated user.
func (s *UserService) CurrentUser(ctx context.Context, userID string) (*models.PublicUser, error) {
	u, err := s.repomanager.Users(s.db).GetPublicByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.Unauthorized(msgInvalidAccessToken)
		}
		return nil, common.Internal("Something went wrong while fetching the user", err)
	}
	return u, nil
}
