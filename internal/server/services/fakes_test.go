package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/librarykeeper/internal/common"
	"github.com/dmitrijs2005/librarykeeper/internal/dbx"
	"github.com/dmitrijs2005/librarykeeper/internal/server/auth"
	"github.com/dmitrijs2005/librarykeeper/internal/server/models"
	"github.com/dmitrijs2005/librarykeeper/internal/server/repositories/auditlogs"
	refreshtokensrepo "github.com/dmitrijs2005/librarykeeper/internal/server/repositories/refreshtokens"
	usersrepo "github.com/dmitrijs2005/librarykeeper/internal/server/repositories/users"
)

// memStore backs the fake repositories. Transactions come from a throwaway
// sqlite database; the fakes ignore the handle they are bound to.
type memStore struct {
	mu     sync.Mutex
	users  map[string]*models.User
	tokens map[string]*models.RefreshToken
	seq    int

	usersErr   error
	createErr  error
	consumeErr error
	revokeErr  error
}

func newMemStore() *memStore {
	return &memStore{
		users:  map[string]*models.User{},
		tokens: map[string]*models.RefreshToken{},
	}
}

func (m *memStore) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *memStore) Users(dbx.DBTX) usersrepo.Repository          { return (*memUsers)(m) }
func (m *memStore) RefreshTokens(dbx.DBTX) refreshtokensrepo.Repository {
	return (*memTokens)(m)
}
func (m *memStore) AuditLogs(dbx.DBTX) auditlogs.Repository { return nil }

func (m *memStore) deleteUser(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
}

func (m *memStore) activeTokens(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tokens {
		if t.UserID == userID && !t.Revoked {
			n++
		}
	}
	return n
}

type memUsers memStore

func (u *memUsers) Create(_ context.Context, user *models.User) (*models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.usersErr != nil {
		return nil, u.usersErr
	}
	for _, existing := range u.users {
		if existing.Username == user.Username {
			return nil, common.ErrDuplicateUsername
		}
		if existing.Email == user.Email {
			return nil, common.ErrDuplicateEmail
		}
	}
	u.seq++
	cp := *user
	cp.ID = fmt.Sprintf("user-%d", u.seq)
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	u.users[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (u *memUsers) find(match func(*models.User) bool) (*models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.usersErr != nil {
		return nil, u.usersErr
	}
	for _, existing := range u.users {
		if match(existing) {
			cp := *existing
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (u *memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	return u.find(func(x *models.User) bool { return x.ID == id })
}

func (u *memUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return u.find(func(x *models.User) bool { return x.Username == username })
}

func (u *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return u.find(func(x *models.User) bool { return x.Email == email })
}

type memTokens memStore

func (r *memTokens) Create(_ context.Context, token *models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	cp := *token
	r.tokens[cp.ID] = &cp
	return nil
}

func (r *memTokens) FindActive(_ context.Context, id, token string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[id]
	if !ok || t.Token != token || t.Revoked || !t.ExpiresAt.After(time.Now()) {
		return nil, common.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *memTokens) Consume(_ context.Context, id, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.consumeErr != nil {
		return false, r.consumeErr
	}
	t, ok := r.tokens[id]
	if !ok || t.Token != token || t.Revoked {
		return false, nil
	}
	t.Revoked = true
	return true, nil
}

func (r *memTokens) RevokeByToken(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.revokeErr != nil {
		return r.revokeErr
	}
	for _, t := range r.tokens {
		if t.Token == token {
			t.Revoked = true
		}
	}
	return nil
}

const (
	testAccessSecret  = "access-secret-for-service-tests-000"
	testRefreshSecret = "refresh-secret-for-service-tests-00"
)

func newTestCodec(refreshTTL time.Duration) *auth.Codec {
	return auth.NewCodec(auth.CodecConfig{
		AccessSecret:  testAccessSecret,
		RefreshSecret: testRefreshSecret,
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    refreshTTL,
	})
}

func newTxDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestService(t *testing.T) (*AuthService, *memStore) {
	t.Helper()
	store := newMemStore()
	s := NewAuthService(newTxDB(t), store, newTestCodec(7*24*time.Hour), auth.NewBcryptHasher(bcrypt.MinCost))
	return s, store
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

// racingUsers hides existing rows from lookups and fails the insert, the
// way a concurrent registration looks from the losing side.
type racingUsers struct {
	*memUsers
	createErr error
}

func (r *racingUsers) GetByUsername(context.Context, string) (*models.User, error) {
	return nil, common.ErrNotFound
}

func (r *racingUsers) GetByEmail(context.Context, string) (*models.User, error) {
	return nil, common.ErrNotFound
}

func (r *racingUsers) Create(context.Context, *models.User) (*models.User, error) {
	return nil, r.createErr
}

type racingManager struct {
	*memStore
	users usersrepo.Repository
}

func (m *racingManager) Users(dbx.DBTX) usersrepo.Repository { return m.users }
