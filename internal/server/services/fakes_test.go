package services

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/userauth/internal/common"
	"github.com/dmitrijs2005/userauth/internal/dbx"
	"github.com/dmitrijs2005/userauth/internal/logging"
	"github.com/dmitrijs2005/userauth/internal/server/auth"
	"github.com/dmitrijs2005/userauth/internal/server/config"
	"github.com/dmitrijs2005/userauth/internal/server/events"
	"github.com/dmitrijs2005/userauth/internal/server/models"
	usersrepo "github.com/dmitrijs2005/userauth/internal/server/repositories/users"
	"github.com/dmitrijs2005/userauth/internal/server/storage"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// memUsers is an in-memory users.Repository with the same uniqueness and
// rotation rules as the PostgreSQL one.
type memUsers struct {
	mu   sync.Mutex
	rows map[string]*models.User
	seq  int

	creates int

	findErr       error
	createErr     error
	setErr        error
	clearErr      error
	rotateErr     error
	publicMissing bool
}

func newMemUsers() *memUsers {
	return &memUsers{rows: map[string]*models.User{}}
}

func (m *memUsers) Create(ctx context.Context, u *models.User, password string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.createErr != nil {
		return nil, m.createErr
	}
	for _, r := range m.rows {
		if r.UserName == u.UserName || r.Email == u.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	hash, err := usersrepo.HashPassword(password, bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	m.seq++
	row := *u
	row.ID = fmt.Sprintf("u-%d", m.seq)
	row.PasswordHash = hash
	row.CreatedAt = time.Now()
	row.UpdatedAt = row.CreatedAt
	m.rows[row.ID] = &row
	out := row
	return &out, nil
}

func (m *memUsers) FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, r := range m.rows {
		if r.UserName == username || r.Email == email {
			out := *r
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (m *memUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *r
	return &out, nil
}

func (m *memUsers) GetPublicByID(ctx context.Context, id string) (*models.PublicUser, error) {
	if m.publicMissing {
		return nil, common.ErrorNotFound
	}
	u, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return u.Public(), nil
}

func (m *memUsers) SetRefreshToken(ctx context.Context, id, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	r, ok := m.rows[id]
	if !ok {
		return common.ErrorNotFound
	}
	r.RefreshToken = token
	return nil
}

func (m *memUsers) ClearRefreshToken(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clearErr != nil {
		return m.clearErr
	}
	if r, ok := m.rows[id]; ok {
		r.RefreshToken = ""
	}
	return nil
}

func (m *memUsers) RotateRefreshToken(ctx context.Context, id, current, next string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rotateErr != nil {
		return m.rotateErr
	}
	r, ok := m.rows[id]
	if !ok || r.RefreshToken != current {
		return common.ErrorNotFound
	}
	r.RefreshToken = next
	return nil
}

func (m *memUsers) stored(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id].RefreshToken
}

// seed inserts a user with the given password and returns it.
func (m *memUsers) seed(t *testing.T, username, email, password string) *models.User {
	t.Helper()
	u, err := m.Create(context.Background(), &models.User{
		UserName:  username,
		Email:     email,
		FullName:  strings.ToUpper(username),
		AvatarURL: "https://cdn/avatars/" + username + ".png",
	}, password)
	require.NoError(t, err)
	m.creates = 0
	return u
}

type fakeRepoManager struct{ u *memUsers }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository          { return m.u }

type fakeGateway struct {
	mu       sync.Mutex
	fail     map[storage.ObjectKind]error
	uploaded []string
	deleted  []string
}

func (g *fakeGateway) Upload(ctx context.Context, path string, kind storage.ObjectKind) (*storage.StoredObject, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail[kind]; err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrUploadFailed, err)
	}
	key := string(kind) + "/" + filepath.Base(path)
	g.uploaded = append(g.uploaded, key)
	return &storage.StoredObject{URL: "https://cdn/" + key, Key: key}, nil
}

func (g *fakeGateway) Delete(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleted = append(g.deleted, key)
	return nil
}

type fakePublisher struct {
	err    error
	events []events.UserRegistered
}

func (p *fakePublisher) PublishUserRegistered(ctx context.Context, ev events.UserRegistered) error {
	p.events = append(p.events, ev)
	return p.err
}

type fixture struct {
	svc    *UserService
	users  *memUsers
	gw     *fakeGateway
	pub    *fakePublisher
	tokens *auth.TokenService
	mock   sqlmock.Sqlmock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})

	f := &fixture{
		users:  newMemUsers(),
		gw:     &fakeGateway{fail: map[storage.ObjectKind]error{}},
		pub:    &fakePublisher{},
		tokens: auth.NewTokenService("access-secret", 15*time.Minute, "refresh-secret", 240*time.Hour),
		mock:   mock,
	}
	cfg := &config.Config{CookieSecure: true}
	f.svc = NewUserService(db, &fakeRepoManager{u: f.users}, f.tokens, f.gw, f.pub, cfg, logging.Nop{})
	return f
}
