// Package models defines server-side data models persisted in the database
// or returned by the session engine.
package models

import "time"

// User is a registered account. PasswordHash holds a bcrypt hash, never the
// plaintext password.
type User struct {
	ID           int64     `db:"user_id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	PhoneNumber  string    `db:"phone_number"`
	PasswordHash string    `db:"password_hash"`
	IPAddress    *string   `db:"ip_address"`
	LoginMethod  string    `db:"login_method"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// Identity is the authenticated caller resolved from a bearer token.
type Identity struct {
	UserID   int64
	Username string
	Email    string
}

// Profile is a user's public attributes plus session statistics.
type Profile struct {
	UserID         int64
	Username       string
	Email          string
	PhoneNumber    string
	IPAddress      *string
	LoginMethod    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ActiveSessions int
	LastLogin      *time.Time
}
