// Package auth issues and verifies the signed access and refresh tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/userauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind tells access and refresh tokens apart. It is carried in the "typ"
// claim and each kind is signed with its own secret.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims is the token payload.
type Claims struct {
	jwt.RegisteredClaims
	Type Kind `json:"typ"`
}

// IssuedToken is a signed token together with its expiry.
type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// TokenClaims is the verified content of a token.
type TokenClaims struct {
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type keyConfig struct {
	secret []byte
	ttl    time.Duration
}

// TokenService signs and verifies tokens with HS256.
type TokenService struct {
	keys map[Kind]keyConfig
	now  func() time.Time
}

// NewTokenService builds a TokenService with independent secrets and
// lifetimes for the two token kinds.
func NewTokenService(accessSecret string, accessTTL time.Duration, refreshSecret string, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		keys: map[Kind]keyConfig{
			KindAccess:  {secret: []byte(accessSecret), ttl: accessTTL},
			KindRefresh: {secret: []byte(refreshSecret), ttl: refreshTTL},
		},
		now: time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

func (s *TokenService) IssueAccessToken(userID string) (*IssuedToken, error) {
	return s.issue(userID, KindAccess)
}

func (s *TokenService) IssueRefreshToken(userID string) (*IssuedToken, error) {
	return s.issue(userID, KindRefresh)
}

func (s *TokenService) issue(userID string, kind Kind) (*IssuedToken, error) {
	key := s.keys[kind]
	now := s.now()
	exp := now.Add(key.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
		Type: kind,
	})

	signed, err := token.SignedString(key.secret)
	if err != nil {
		return nil, fmt.Errorf("sign %s token: %w", kind, err)
	}

	return &IssuedToken{Value: signed, ExpiresAt: exp.Truncate(time.Second)}, nil
}

// Verify checks the signature, expiry and kind of tokenString.
// It returns common.ErrTokenExpired for expired tokens and
// common.ErrInvalidToken for everything else.
func (s *TokenService) Verify(tokenString string, kind Kind) (*TokenClaims, error) {
	key, ok := s.keys[kind]
	if !ok {
		return nil, common.ErrInvalidToken
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return key.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if claims.Type != kind || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	tc := &TokenClaims{UserID: claims.Subject, ExpiresAt: claims.ExpiresAt.Time}
	if claims.IssuedAt != nil {
		tc.IssuedAt = claims.IssuedAt.Time
	}
	return tc, nil
}
