// Package auth implements the token codec: signing and verifying the access
// and refresh tokens handed to clients. It knows nothing about users or
// sessions; it only binds a subject to a token type and an expiry.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
)

// Claims carried by every token. Subject is the user id as a decimal
// string; ID (jti) is set on access tokens only.
type Claims struct {
	jwt.RegisteredClaims
	Type string `json:"type"`
}

// Codec issues and decodes tokens with a fixed key and lifetimes.
type Codec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewCodec validates its settings once; a Codec is immutable afterwards.
func NewCodec(secret []byte, algorithm string, accessTTL, refreshTTL time.Duration) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty signing secret")
	}
	if algorithm != common.SigningAlgorithmHS256 {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	return &Codec{
		secret:     append([]byte(nil), secret...),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// IssueAccess mints an access token with a fresh random token id.
func (c *Codec) IssueAccess(subject string) (token string, tokenID string, err error) {
	tokenID = uuid.NewString()
	token, err = c.sign(subject, common.TokenTypeAccess, tokenID, c.accessTTL)
	if err != nil {
		return "", "", err
	}
	return token, tokenID, nil
}

// IssueRefresh mints a refresh token.
func (c *Codec) IssueRefresh(subject string) (string, error) {
	return c.sign(subject, common.TokenTypeRefresh, "", c.refreshTTL)
}

func (c *Codec) sign(subject, tokenType, tokenID string, ttl time.Duration) (string, error) {
	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Type: tokenType,
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature and expiry of token and returns its claims.
// Errors are common.ErrTokenExpired, ErrTokenSignatureInvalid or
// ErrTokenMalformed. Tokens using any algorithm other than HS256 fail with
// ErrTokenSignatureInvalid.
func (c *Codec) Decode(token string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{common.SigningAlgorithmHS256}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, common.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, ErrTokenSignatureInvalid
	default:
		return nil, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}
}

// FormatSubject renders a user id as a token subject.
func FormatSubject(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// ParseSubject reads a user id back from a token subject.
func ParseSubject(subject string) (int64, error) {
	id, err := strconv.ParseInt(subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: subject %q is not a user id", ErrTokenMalformed, subject)
	}
	return id, nil
}
