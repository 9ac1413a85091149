package services

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/password"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

// memStore backs both fake repositories. Transactions are not simulated:
// the DBTX handle is ignored.
type memStore struct {
	mu       sync.Mutex
	users    map[int64]*models.User
	records  map[int64]*models.LoginRecord
	nextUser int64
	nextRec  int64

	// injected failures
	usersErr    error
	sessionsErr error
	createErr   error
}

func newMemStore() *memStore {
	return &memStore{
		users:   make(map[int64]*models.User),
		records: make(map[int64]*models.LoginRecord),
	}
}

type fakeUsersRepo struct{ s *memStore }

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.usersErr != nil {
		return nil, f.s.usersErr
	}
	if f.s.createErr != nil {
		return nil, f.s.createErr
	}
	for _, existing := range f.s.users {
		if existing.Email == u.Email {
			return nil, common.ErrEmailExists
		}
		if existing.Username == u.Username {
			return nil, common.ErrUsernameExists
		}
	}
	f.s.nextUser++
	cp := *u
	cp.ID = f.s.nextUser
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	f.s.users[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeUsersRepo) find(match func(*models.User) bool) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.usersErr != nil {
		return nil, f.s.usersErr
	}
	for _, u := range f.s.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.Email == email })
}

func (f *fakeUsersRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.Username == username })
}

func (f *fakeUsersRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.ID == id })
}

type fakeSessionsRepo struct{ s *memStore }

func (f *fakeSessionsRepo) Create(_ context.Context, rec *models.LoginRecord) (*models.LoginRecord, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.sessionsErr != nil {
		return nil, f.s.sessionsErr
	}
	f.s.nextRec++
	cp := *rec
	cp.ID = f.s.nextRec
	cp.IsActive = true
	cp.CreatedAt = time.Now()
	cp.LoggedOutAt = nil
	f.s.records[cp.ID] = &cp
	out := cp
	return &out, nil
}

// sorted returns the user's records newest first; caller holds the lock.
func (f *fakeSessionsRepo) sorted(userID int64) []*models.LoginRecord {
	var out []*models.LoginRecord
	for _, r := range f.s.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (f *fakeSessionsRepo) FindLatestActive(_ context.Context, userID int64) (*models.LoginRecord, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.sessionsErr != nil {
		return nil, f.s.sessionsErr
	}
	for _, r := range f.sorted(userID) {
		if r.IsActive {
			cp := *r
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeSessionsRepo) CloseAllActive(_ context.Context, userID int64) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.sessionsErr != nil {
		return 0, f.s.sessionsErr
	}
	var n int64
	now := time.Now()
	for _, r := range f.s.records {
		if r.UserID == userID && r.IsActive {
			r.IsActive = false
			r.LoggedOutAt = &now
			n++
		}
	}
	return n, nil
}

func (f *fakeSessionsRepo) FindByID(_ context.Context, id int64) (*models.LoginRecord, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.sessionsErr != nil {
		return nil, f.s.sessionsErr
	}
	r, ok := f.s.records[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeSessionsRepo) SetStatus(_ context.Context, id int64, active bool, ip *string) (*models.LoginRecord, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.sessionsErr != nil {
		return nil, f.s.sessionsErr
	}
	r, ok := f.s.records[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	r.IsActive = active
	if active {
		r.LoggedOutAt = nil
	} else if r.LoggedOutAt == nil {
		now := time.Now()
		r.LoggedOutAt = &now
	}
	if ip != nil {
		v := *ip
		r.IPAddress = &v
	}
	cp := *r
	return &cp, nil
}

func (f *fakeSessionsRepo) CountActive(_ context.Context, userID int64) (int, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.sessionsErr != nil {
		return 0, f.s.sessionsErr
	}
	n := 0
	for _, r := range f.s.records {
		if r.UserID == userID && r.IsActive {
			n++
		}
	}
	return n, nil
}

func (f *fakeSessionsRepo) ListByUser(_ context.Context, userID int64, limit int) ([]*models.LoginRecord, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.sessionsErr != nil {
		return nil, f.s.sessionsErr
	}
	all := f.sorted(userID)
	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]*models.LoginRecord, 0, len(all))
	for _, r := range all {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

type fakeRepoManager struct{ s *memStore }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository              { return &fakeUsersRepo{s: m.s} }
func (m *fakeRepoManager) Sessions(dbx.DBTX) sessions.Repository        { return &fakeSessionsRepo{s: m.s} }

// newTxDB returns a real database handle so dbx.WithTx can begin and
// commit; the fakes never issue statements on it.
func newTxDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestCodec(t *testing.T) *auth.Codec {
	t.Helper()
	codec, err := auth.NewCodec([]byte("test-secret"), common.SigningAlgorithmHS256, time.Hour, 7*24*time.Hour)
	require.NoError(t, err)
	return codec
}

type testEnv struct {
	svc   *AuthService
	store *memStore
	codec *auth.Codec
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{}
	}
	store := newMemStore()
	codec := newTestCodec(t)
	svc := NewAuthService(newTxDB(t), &fakeRepoManager{s: store}, codec,
		password.NewHasher(bcrypt.MinCost), cfg, newTestLogger())
	return &testEnv{svc: svc, store: store, codec: codec}
}

func strPtr(s string) *string { return &s }

func aliceSignup() SignupInput {
	return SignupInput{
		Username:    "alice",
		Email:       "a@x.io",
		PhoneNumber: "5551234",
		Password:    "s3cretpass",
		LoginMethod: "email",
		ClientIP:    strPtr("10.0.0.1"),
	}
}
