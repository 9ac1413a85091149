// Package services contains application services for the gophauth CLI.
// AuthService drives the remote API and keeps the signed-in user's tokens in
// the local metadata store.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/client/client"
	"github.com/dmitrijs2005/gophauth/internal/client/models"
	"github.com/dmitrijs2005/gophauth/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
)

// AuthService defines the authentication operations of the CLI.
//
// Contract:
//   - Signup and Login persist the returned tokens locally.
//   - Refresh exchanges the stored refresh token for a new pair.
//   - Logout closes every server session and wipes the local tokens.
//   - Me and Sessions retry once after a transparent refresh when the server
//     reports an expired access token.
//   - CurrentUser reports the signed-in username, or client.ErrNotLoggedIn
//     when no access token is stored.
type AuthService interface {
	Signup(ctx context.Context, req models.SignupRequest) (*models.Session, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.Session, error)
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) (int64, error)
	Me(ctx context.Context) (*models.Profile, error)
	Sessions(ctx context.Context, limit int) ([]models.LoginRecord, error)
	CurrentUser(ctx context.Context) (string, error)
	Ping(ctx context.Context) error
}

type authService struct {
	client client.Client
	db     *sql.DB
}

// NewAuthService constructs an AuthService bound to the given API client and
// local database.
func NewAuthService(c client.Client, db *sql.DB) AuthService {
	return &authService{client: c, db: db}
}

func (a *authService) metadataRepo(db dbx.DBTX) metadata.Repository {
	return metadata.NewSQLiteRepository(db)
}

func (a *authService) Signup(ctx context.Context, req models.SignupRequest) (*models.Session, error) {
	s, err := a.client.Signup(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := a.saveSession(ctx, s.Username, &s.Tokens); err != nil {
		return nil, err
	}
	return s, nil
}

func (a *authService) Login(ctx context.Context, req models.LoginRequest) (*models.Session, error) {
	s, err := a.client.Login(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := a.saveSession(ctx, s.Username, &s.Tokens); err != nil {
		return nil, err
	}
	return s, nil
}

// saveSession stores username and tokens in one transaction. An empty
// username keeps the stored one.
func (a *authService) saveSession(ctx context.Context, username string, t *models.Tokens) error {
	err := dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := a.metadataRepo(tx)
		if username != "" {
			if err := repo.Set(ctx, metadata.KeyUsername, username); err != nil {
				return err
			}
		}
		if err := repo.Set(ctx, metadata.KeyAccessToken, t.AccessToken); err != nil {
			return err
		}
		return repo.Set(ctx, metadata.KeyRefreshToken, t.RefreshToken)
	})
	if err != nil {
		return fmt.Errorf("save tokens: %w", err)
	}
	return nil
}

func (a *authService) token(ctx context.Context, key string) (string, error) {
	v, err := a.metadataRepo(a.db).Get(ctx, key)
	if errors.Is(err, common.ErrorNotFound) || (err == nil && v == "") {
		return "", client.ErrNotLoggedIn
	}
	return v, err
}

func (a *authService) Refresh(ctx context.Context) error {
	refresh, err := a.token(ctx, metadata.KeyRefreshToken)
	if err != nil {
		return err
	}

	t, err := a.client.Refresh(ctx, refresh)
	if err != nil {
		return err
	}
	return a.saveSession(ctx, "", t)
}

// withAccess runs fn with the stored access token, refreshing and retrying
// once when the server answers TOKEN_EXPIRED.
func (a *authService) withAccess(ctx context.Context, fn func(token string) error) error {
	access, err := a.token(ctx, metadata.KeyAccessToken)
	if err != nil {
		return err
	}

	err = fn(access)
	if !client.IsCode(err, common.ErrTokenExpired.Code) {
		return err
	}

	if err := a.Refresh(ctx); err != nil {
		return err
	}
	access, err = a.token(ctx, metadata.KeyAccessToken)
	if err != nil {
		return err
	}
	return fn(access)
}

// Logout closes the server sessions and clears local tokens. Local tokens are
// cleared as well when the server has no active session left.
func (a *authService) Logout(ctx context.Context) (int64, error) {
	var closed int64
	err := a.withAccess(ctx, func(token string) error {
		var err error
		closed, err = a.client.Logout(ctx, token)
		return err
	})
	if err != nil && !client.IsCode(err, common.ErrNoActiveSessions.Code) {
		return 0, err
	}

	if derr := a.metadataRepo(a.db).Delete(ctx, metadata.KeyAccessToken, metadata.KeyRefreshToken); derr != nil {
		return 0, fmt.Errorf("clear tokens: %w", derr)
	}
	return closed, err
}

func (a *authService) Me(ctx context.Context) (*models.Profile, error) {
	var p *models.Profile
	err := a.withAccess(ctx, func(token string) error {
		var err error
		p, err = a.client.Me(ctx, token)
		return err
	})
	return p, err
}

func (a *authService) Sessions(ctx context.Context, limit int) ([]models.LoginRecord, error) {
	var list []models.LoginRecord
	err := a.withAccess(ctx, func(token string) error {
		var err error
		list, err = a.client.Sessions(ctx, token, limit)
		return err
	})
	return list, err
}

func (a *authService) CurrentUser(ctx context.Context) (string, error) {
	if _, err := a.token(ctx, metadata.KeyAccessToken); err != nil {
		return "", err
	}
	return a.token(ctx, metadata.KeyUsername)
}

func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}
