// Package common defines shared constants and errors used across client and
// server layers of gophauth. Callers should use errors.Is to match the
// sentinel values and KindOf / CodeOf to classify arbitrary errors.
package common

import "errors"

// Kind groups errors by how a caller should react to them.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindUnauthorized
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error is a classified error with a stable machine-readable code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// NewError returns a classified error.
func NewError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal = NewError(KindInternal, "INTERNAL_ERROR", "internal server error")

	ErrValidation = NewError(KindValidation, "VALIDATION_ERROR", "request validation failed")

	ErrEmailExists    = NewError(KindConflict, "EMAIL_EXISTS", "email already registered")
	ErrUsernameExists = NewError(KindConflict, "USERNAME_EXISTS", "username already taken")

	ErrInvalidCredentials = NewError(KindUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
	ErrAuthHeaderMissing  = NewError(KindUnauthorized, "AUTH_HEADER_MISSING", "authorization header missing or malformed")
	ErrInvalidToken       = NewError(KindUnauthorized, "INVALID_TOKEN", "invalid token")
	ErrTokenExpired       = NewError(KindUnauthorized, "TOKEN_EXPIRED", "token has expired")
	ErrNoActiveSessions   = NewError(KindUnauthorized, "NO_ACTIVE_SESSIONS", "no active sessions")

	ErrUserNotFound    = NewError(KindNotFound, "USER_NOT_FOUND", "user not found")
	ErrSessionNotFound = NewError(KindNotFound, "SESSION_NOT_FOUND", "session not found")
)

// KindOf reports the kind of the first classified error in err's chain.
// Unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf reports the code of the first classified error in err's chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrorInternal.Code
}
