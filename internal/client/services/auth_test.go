package services

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/gophauth/internal/client/client"
	"github.com/dmitrijs2005/gophauth/internal/client/models"
	"github.com/dmitrijs2005/gophauth/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func getMeta(t *testing.T, db *sql.DB, key string) string {
	t.Helper()
	v, err := metadata.NewSQLiteRepository(db).Get(context.Background(), key)
	require.NoError(t, err)
	return v
}

func setMeta(t *testing.T, db *sql.DB, key, value string) {
	t.Helper()
	require.NoError(t, metadata.NewSQLiteRepository(db).Set(context.Background(), key, value))
}

func apiErr(code string) error {
	return &client.APIError{StatusCode: 401, Code: code, Message: code}
}

// fakeClient accepts only the access token in validAccess; any other token is
// answered with accessErr (TOKEN_EXPIRED by default).
type fakeClient struct {
	validAccess string
	accessErr   error

	signupErr  error
	loginErr   error
	refreshErr error
	logoutErr  error

	refreshCalls int
	lastRefresh  string
	meCalls      int
	lastLimit    int
}

func (f *fakeClient) checkAccess(token string) error {
	if token == f.validAccess {
		return nil
	}
	if f.accessErr != nil {
		return f.accessErr
	}
	return apiErr(common.ErrTokenExpired.Code)
}

func (f *fakeClient) Signup(_ context.Context, req models.SignupRequest) (*models.Session, error) {
	if f.signupErr != nil {
		return nil, f.signupErr
	}
	return &models.Session{UserID: 1, Username: req.Username, Email: req.Email,
		Tokens: models.Tokens{AccessToken: "acc1", RefreshToken: "ref1", TokenType: "bearer"}}, nil
}

func (f *fakeClient) Login(_ context.Context, req models.LoginRequest) (*models.Session, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &models.Session{UserID: 1, Username: "alice", Email: req.Email,
		Tokens: models.Tokens{AccessToken: "acc1", RefreshToken: "ref1", TokenType: "bearer"}}, nil
}

func (f *fakeClient) Refresh(_ context.Context, refreshToken string) (*models.Tokens, error) {
	f.refreshCalls++
	f.lastRefresh = refreshToken
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	f.validAccess = "acc2"
	return &models.Tokens{AccessToken: "acc2", RefreshToken: "ref2", TokenType: "bearer"}, nil
}

func (f *fakeClient) Logout(_ context.Context, accessToken string) (int64, error) {
	if err := f.checkAccess(accessToken); err != nil {
		return 0, err
	}
	if f.logoutErr != nil {
		return 0, f.logoutErr
	}
	return 2, nil
}

func (f *fakeClient) Me(_ context.Context, accessToken string) (*models.Profile, error) {
	f.meCalls++
	if err := f.checkAccess(accessToken); err != nil {
		return nil, err
	}
	return &models.Profile{UserID: 1, Username: "alice", ActiveSessions: 1}, nil
}

func (f *fakeClient) Sessions(_ context.Context, accessToken string, limit int) ([]models.LoginRecord, error) {
	f.lastLimit = limit
	if err := f.checkAccess(accessToken); err != nil {
		return nil, err
	}
	return []models.LoginRecord{{ID: 1, IsActive: true}}, nil
}

func (f *fakeClient) Ping(context.Context) error { return nil }

func TestSignup_StoresTokens(t *testing.T) {
	db := setupDB(t)
	svc := NewAuthService(&fakeClient{}, db)

	s, err := svc.Signup(context.Background(), models.SignupRequest{Username: "alice", Email: "a@x.io"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.UserID)

	assert.Equal(t, "alice", getMeta(t, db, metadata.KeyUsername))
	assert.Equal(t, "acc1", getMeta(t, db, metadata.KeyAccessToken))
	assert.Equal(t, "ref1", getMeta(t, db, metadata.KeyRefreshToken))

	user, err := svc.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", user)
}

func TestLogin_ErrorLeavesStoreUntouched(t *testing.T) {
	db := setupDB(t)
	svc := NewAuthService(&fakeClient{loginErr: apiErr("INVALID_CREDENTIALS")}, db)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "a@x.io"})
	require.True(t, client.IsCode(err, "INVALID_CREDENTIALS"))

	_, err = svc.CurrentUser(context.Background())
	require.ErrorIs(t, err, client.ErrNotLoggedIn)
}

func TestMe_NotLoggedIn(t *testing.T) {
	svc := NewAuthService(&fakeClient{}, setupDB(t))

	_, err := svc.Me(context.Background())
	require.ErrorIs(t, err, client.ErrNotLoggedIn)
}

func TestMe_ValidToken(t *testing.T) {
	db := setupDB(t)
	f := &fakeClient{validAccess: "acc1"}
	svc := NewAuthService(f, db)
	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "a@x.io"})
	require.NoError(t, err)

	p, err := svc.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, 0, f.refreshCalls)
}

func TestMe_RefreshesOnceOnExpiredToken(t *testing.T) {
	db := setupDB(t)
	f := &fakeClient{validAccess: "none-yet"}
	svc := NewAuthService(f, db)
	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "a@x.io"})
	require.NoError(t, err)

	p, err := svc.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.UserID)
	assert.Equal(t, 1, f.refreshCalls)
	assert.Equal(t, "ref1", f.lastRefresh)
	assert.Equal(t, 2, f.meCalls)

	assert.Equal(t, "acc2", getMeta(t, db, metadata.KeyAccessToken))
	assert.Equal(t, "ref2", getMeta(t, db, metadata.KeyRefreshToken))
	assert.Equal(t, "alice", getMeta(t, db, metadata.KeyUsername))
}

func TestMe_OtherErrorsAreNotRetried(t *testing.T) {
	db := setupDB(t)
	f := &fakeClient{accessErr: apiErr(common.ErrNoActiveSessions.Code)}
	svc := NewAuthService(f, db)
	setMeta(t, db, metadata.KeyAccessToken, "stale")

	_, err := svc.Me(context.Background())
	require.True(t, client.IsCode(err, "NO_ACTIVE_SESSIONS"))
	assert.Equal(t, 0, f.refreshCalls)
	assert.Equal(t, 1, f.meCalls)
}

func TestMe_RefreshFailureIsReturned(t *testing.T) {
	db := setupDB(t)
	f := &fakeClient{refreshErr: apiErr(common.ErrNoActiveSessions.Code)}
	svc := NewAuthService(f, db)
	setMeta(t, db, metadata.KeyAccessToken, "expired")
	setMeta(t, db, metadata.KeyRefreshToken, "ref1")

	_, err := svc.Me(context.Background())
	require.True(t, client.IsCode(err, "NO_ACTIVE_SESSIONS"))
	assert.Equal(t, 1, f.meCalls)
}

func TestSessions_PassesLimit(t *testing.T) {
	db := setupDB(t)
	f := &fakeClient{validAccess: "acc1"}
	svc := NewAuthService(f, db)
	setMeta(t, db, metadata.KeyAccessToken, "acc1")

	list, err := svc.Sessions(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 7, f.lastLimit)
}

func TestRefresh_NoStoredToken(t *testing.T) {
	svc := NewAuthService(&fakeClient{}, setupDB(t))
	require.ErrorIs(t, svc.Refresh(context.Background()), client.ErrNotLoggedIn)
}

func TestLogout_ClearsTokens(t *testing.T) {
	db := setupDB(t)
	svc := NewAuthService(&fakeClient{validAccess: "acc1"}, db)
	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "a@x.io"})
	require.NoError(t, err)

	n, err := svc.Logout(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = svc.Me(context.Background())
	require.ErrorIs(t, err, client.ErrNotLoggedIn)
	_, err = svc.CurrentUser(context.Background())
	require.ErrorIs(t, err, client.ErrNotLoggedIn)
	assert.Equal(t, "alice", getMeta(t, db, metadata.KeyUsername))
}

func TestLogout_NoActiveSessionsStillClears(t *testing.T) {
	db := setupDB(t)
	svc := NewAuthService(&fakeClient{validAccess: "acc1", logoutErr: apiErr(common.ErrNoActiveSessions.Code)}, db)
	setMeta(t, db, metadata.KeyAccessToken, "acc1")
	setMeta(t, db, metadata.KeyRefreshToken, "ref1")

	_, err := svc.Logout(context.Background())
	require.True(t, client.IsCode(err, "NO_ACTIVE_SESSIONS"))

	require.ErrorIs(t, svc.Refresh(context.Background()), client.ErrNotLoggedIn)
}

func TestLogout_TransportErrorKeepsTokens(t *testing.T) {
	db := setupDB(t)
	svc := NewAuthService(&fakeClient{validAccess: "acc1", logoutErr: client.ErrUnavailable}, db)
	setMeta(t, db, metadata.KeyAccessToken, "acc1")

	_, err := svc.Logout(context.Background())
	require.ErrorIs(t, err, client.ErrUnavailable)
	assert.Equal(t, "acc1", getMeta(t, db, metadata.KeyAccessToken))
}
