// Package services contains server-side business logic. AuthService is the
// session lifecycle engine: it registers and authenticates users, binds
// issued tokens to the session ledger and closes sessions on logout.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
)

// TokenTypeBearer is reported to clients alongside issued tokens.
const TokenTypeBearer = "bearer"

// Session history page bounds.
const (
	DefaultSessionsLimit = 20
	MaxSessionsLimit     = 100
)

// TokenCodec signs and verifies tokens.
type TokenCodec interface {
	IssueAccess(subject string) (token string, tokenID string, err error)
	IssueRefresh(subject string) (string, error)
	Decode(token string) (*auth.Claims, error)
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) (bool, error)
	VerifyDummy(plain string)
}

type SignupInput struct {
	Username    string
	Email       string
	PhoneNumber string
	Password    string
	LoginMethod string
	ClientIP    *string
}

type LoginInput struct {
	Email       string
	Password    string
	LoginMethod string
	ClientIP    *string
}

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
}

// AuthResult is returned by Signup and Login.
type AuthResult struct {
	UserID   int64
	Username string
	Email    string
	TokenPair
}

type AuthService struct {
	db                 *sql.DB
	repomanager        repomanager.RepositoryManager
	codec              TokenCodec
	hasher             PasswordHasher
	strictAccessTokens bool
	log                logging.Logger
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, codec TokenCodec, hasher PasswordHasher,
	cfg *config.Config, log logging.Logger) *AuthService {
	return &AuthService{
		db:                 db,
		repomanager:        m,
		codec:              codec,
		hasher:             hasher,
		strictAccessTokens: cfg.StrictAccessTokens,
		log:                log.With("module", "auth"),
	}
}

// Signup creates a user and its first session and returns a fresh token
// pair. A taken email is reported before a taken username.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, s.fail(ctx, "signup", err)
	}

	var result *AuthResult
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		if err := absent(repo.GetByEmail(ctx, in.Email)); err != nil {
			if errors.Is(err, errTaken) {
				return common.ErrEmailExists
			}
			return err
		}
		if err := absent(repo.GetByUsername(ctx, in.Username)); err != nil {
			if errors.Is(err, errTaken) {
				return common.ErrUsernameExists
			}
			return err
		}

		user, err := repo.Create(ctx, &models.User{
			Username:     in.Username,
			Email:        in.Email,
			PhoneNumber:  in.PhoneNumber,
			PasswordHash: hash,
			IPAddress:    in.ClientIP,
			LoginMethod:  in.LoginMethod,
		})
		if err != nil {
			return err
		}

		result, err = s.openSession(ctx, tx, user, in.LoginMethod, in.ClientIP)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "signup", err)
	}

	s.log.Info(ctx, "user signed up", "user_id", result.UserID)
	return result, nil
}

// Login verifies credentials, opens a new session and returns a fresh token
// pair. Unknown email and wrong password are indistinguishable.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.VerifyDummy(in.Password)
			return nil, common.ErrInvalidCredentials
		}
		return nil, s.fail(ctx, "login", err)
	}

	ok, err := s.hasher.Verify(in.Password, user.PasswordHash)
	if err != nil {
		return nil, s.fail(ctx, "login", err)
	}
	if !ok {
		return nil, common.ErrInvalidCredentials
	}

	var result *AuthResult
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		result, err = s.openSession(ctx, tx, user, in.LoginMethod, in.ClientIP)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "login", err)
	}

	s.log.Info(ctx, "user logged in", "user_id", user.ID)
	return result, nil
}

// Refresh exchanges a valid refresh token for a new pair, provided the user
// still has an active session. The presented token is not revoked.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, common.ErrAuthHeaderMissing
	}

	userID, err := s.subject(refreshToken, common.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	var pair *TokenPair
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.activeUser(ctx, tx, userID); err != nil {
			return err
		}
		var err error
		pair, err = s.issuePair(userID)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "refresh", err)
	}

	s.log.Debug(ctx, "tokens refreshed", "user_id", userID)
	return pair, nil
}

// Authorize resolves a bearer token to the calling identity. The user must
// exist and hold at least one active session.
func (s *AuthService) Authorize(ctx context.Context, token string) (*models.Identity, error) {
	if token == "" {
		return nil, common.ErrAuthHeaderMissing
	}

	wantType := ""
	if s.strictAccessTokens {
		wantType = common.TokenTypeAccess
	}
	userID, err := s.subject(token, wantType)
	if err != nil {
		return nil, err
	}

	var identity *models.Identity
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := s.activeUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		identity = &models.Identity{UserID: user.ID, Username: user.Username, Email: user.Email}
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "authorize", err)
	}
	return identity, nil
}

// Logout closes every active session of the user at once and returns how
// many were closed. Access tokens already issued stay verifiable until they
// expire but stop authorizing as soon as no active session remains.
func (s *AuthService) Logout(ctx context.Context, userID int64) (int64, error) {
	var closed int64
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		n, err := s.repomanager.Sessions(tx).CloseAllActive(ctx, userID)
		if err != nil {
			return err
		}
		if n == 0 {
			return common.ErrNoActiveSessions
		}
		closed = n
		return nil
	})
	if err != nil {
		return 0, s.fail(ctx, "logout", err)
	}

	s.log.Info(ctx, "user logged out", "user_id", userID, "sessions_closed", closed)
	return closed, nil
}

// GetProfile returns the user's attributes with the number of active
// sessions and the start of the most recent one.
func (s *AuthService) GetProfile(ctx context.Context, userID int64) (*models.Profile, error) {
	var profile *models.Profile
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := s.repomanager.Users(tx).GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrUserNotFound
			}
			return err
		}

		sessions := s.repomanager.Sessions(tx)
		count, err := sessions.CountActive(ctx, userID)
		if err != nil {
			return err
		}

		profile = &models.Profile{
			UserID:         user.ID,
			Username:       user.Username,
			Email:          user.Email,
			PhoneNumber:    user.PhoneNumber,
			IPAddress:      user.IPAddress,
			LoginMethod:    user.LoginMethod,
			CreatedAt:      user.CreatedAt,
			UpdatedAt:      user.UpdatedAt,
			ActiveSessions: count,
		}

		latest, err := sessions.FindLatestActive(ctx, userID)
		switch {
		case err == nil:
			lastLogin := latest.CreatedAt
			profile.LastLogin = &lastLogin
		case !errors.Is(err, common.ErrorNotFound):
			return err
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "profile", err)
	}
	return profile, nil
}

// ListSessions returns the user's session history, newest first. limit is
// clamped to [1, MaxSessionsLimit]; zero or less selects the default.
func (s *AuthService) ListSessions(ctx context.Context, userID int64, limit int) ([]*models.LoginRecord, error) {
	switch {
	case limit <= 0:
		limit = DefaultSessionsLimit
	case limit > MaxSessionsLimit:
		limit = MaxSessionsLimit
	}

	records, err := s.repomanager.Sessions(s.db).ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, s.fail(ctx, "list sessions", err)
	}
	return records, nil
}

// SetSessionStatus activates or deactivates one of the caller's own sessions.
// Sessions of other users are reported as not found.
func (s *AuthService) SetSessionStatus(ctx context.Context, userID, sessionID int64, active bool, ip *string) (*models.LoginRecord, error) {
	var record *models.LoginRecord
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Sessions(tx)

		current, err := repo.FindByID(ctx, sessionID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrSessionNotFound
			}
			return err
		}
		if current.UserID != userID {
			return common.ErrSessionNotFound
		}

		record, err = repo.SetStatus(ctx, sessionID, active, ip)
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrSessionNotFound
		}
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "set session status", err)
	}

	s.log.Info(ctx, "session status changed", "user_id", userID, "session_id", sessionID, "active", active)
	return record, nil
}

// --- helpers below ---

var errTaken = errors.New("taken")

// absent turns a lookup result into nil when nothing was found, errTaken when
// a row exists, or the lookup error.
func absent(_ *models.User, err error) error {
	switch {
	case err == nil:
		return errTaken
	case errors.Is(err, common.ErrorNotFound):
		return nil
	default:
		return err
	}
}

// subject decodes token and returns the user id it was issued for. An
// empty wantType accepts any token type.
func (s *AuthService) subject(token, wantType string) (int64, error) {
	claims, err := s.codec.Decode(token)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return 0, common.ErrTokenExpired
		}
		return 0, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}

	if wantType != "" && claims.Type != wantType {
		return 0, fmt.Errorf("%w: unexpected token type %q", common.ErrInvalidToken, claims.Type)
	}
	if claims.Subject == "" {
		return 0, fmt.Errorf("%w: missing subject", common.ErrInvalidToken)
	}

	userID, err := auth.ParseSubject(claims.Subject)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}
	return userID, nil
}

// activeUser loads the user and checks that it holds an active session.
func (s *AuthService) activeUser(ctx context.Context, tx dbx.DBTX, userID int64) (*models.User, error) {
	user, err := s.repomanager.Users(tx).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, err
	}

	if _, err := s.repomanager.Sessions(tx).FindLatestActive(ctx, userID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrNoActiveSessions
		}
		return nil, err
	}
	return user, nil
}

// openSession records a new active session for user and issues its tokens.
func (s *AuthService) openSession(ctx context.Context, tx dbx.DBTX, user *models.User, loginMethod string, ip *string) (*AuthResult, error) {
	_, err := s.repomanager.Sessions(tx).Create(ctx, &models.LoginRecord{
		UserID:      user.ID,
		Username:    user.Username,
		Email:       user.Email,
		LoginMethod: loginMethod,
		IPAddress:   ip,
	})
	if err != nil {
		return nil, err
	}

	pair, err := s.issuePair(user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{UserID: user.ID, Username: user.Username, Email: user.Email, TokenPair: *pair}, nil
}

func (s *AuthService) issuePair(userID int64) (*TokenPair, error) {
	subject := auth.FormatSubject(userID)

	access, _, err := s.codec.IssueAccess(subject)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.codec.IssueRefresh(subject)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: TokenTypeBearer}, nil
}

// fail passes classified errors through and hides everything else behind
// common.ErrorInternal after logging it.
func (s *AuthService) fail(ctx context.Context, op string, err error) error {
	if common.KindOf(err) != common.KindInternal {
		return err
	}
	s.log.Error(ctx, op+" failed", "error", err)
	return common.ErrorInternal
}
