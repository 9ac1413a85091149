package httpapi

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

// FieldError describes one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type validator struct {
	errs []FieldError
}

func (v *validator) add(field, msg string) {
	v.errs = append(v.errs, FieldError{Field: field, Message: msg})
}

func (v *validator) length(field, value string, lo, hi int) {
	n := utf8.RuneCountInString(value)
	switch {
	case n < lo:
		v.add(field, fmt.Sprintf("must be at least %d characters", lo))
	case n > hi:
		v.add(field, fmt.Sprintf("must be at most %d characters", hi))
	}
}

// maxEmailBytes is the longest address a mail path can carry and fits the
// users.email column.
const maxEmailBytes = 254

// email accepts only a bare address with a dotted domain name; display
// names, angle brackets and domain literals are rejected.
func (v *validator) email(field, value string) {
	if len(value) > maxEmailBytes {
		v.add(field, fmt.Sprintf("must be at most %d characters", maxEmailBytes))
		return
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value || addr.Name != "" {
		v.add(field, "must be a valid email address")
		return
	}
	domain := value[strings.LastIndexByte(value, '@')+1:]
	if strings.HasPrefix(domain, "[") || !strings.Contains(domain, ".") ||
		strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		v.add(field, "must be a valid email address")
	}
}

type signupRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	PhoneNumber     string `json:"phone_number"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	LoginMethod     string `json:"login_method"`
}

func (r *signupRequest) validate() []FieldError {
	var v validator
	v.length("username", r.Username, 3, 50)
	v.email("email", r.Email)
	v.length("phone_number", r.PhoneNumber, 7, 30)
	v.length("password", r.Password, 8, 128)
	if r.ConfirmPassword != r.Password {
		v.add("confirm_password", "passwords do not match")
	}
	v.length("login_method", r.LoginMethod, 1, 50)
	return v.errs
}

type loginRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	LoginMethod string `json:"login_method"`
}

func (r *loginRequest) validate() []FieldError {
	var v validator
	v.email("email", r.Email)
	v.length("password", r.Password, 8, 128)
	v.length("login_method", r.LoginMethod, 1, 50)
	return v.errs
}

type sessionStatusRequest struct {
	IsActive  *bool   `json:"is_active"`
	IPAddress *string `json:"ip_address"`
}

func (r *sessionStatusRequest) validate() []FieldError {
	var v validator
	if r.IsActive == nil {
		v.add("is_active", "is required")
	}
	if r.IPAddress != nil {
		v.length("ip_address", *r.IPAddress, 1, 45)
	}
	return v.errs
}
