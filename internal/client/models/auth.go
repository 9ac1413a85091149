// Package models defines the payloads the CLI client exchanges with the
// gophauth HTTP API.
package models

import "time"

// SignupRequest is the body of POST /auth/signup.
type SignupRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	PhoneNumber     string `json:"phone_number"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	LoginMethod     string `json:"login_method"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	LoginMethod string `json:"login_method"`
}

// Tokens is a freshly issued access/refresh pair.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// Session is returned by signup and login.
type Session struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Tokens
}

type Profile struct {
	UserID         int64      `json:"user_id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	PhoneNumber    string     `json:"phone_number"`
	IPAddress      *string    `json:"ip_address"`
	LoginMethod    string     `json:"login_method"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	ActiveSessions int        `json:"active_sessions"`
	LastLogin      *time.Time `json:"last_login"`
}

// LoginRecord is one entry of the session history.
type LoginRecord struct {
	ID          int64      `json:"id"`
	LoginMethod string     `json:"login_method"`
	IPAddress   *string    `json:"ip_address"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	LoggedOutAt *time.Time `json:"logged_out_at"`
}
