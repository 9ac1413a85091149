package models

import "time"

// LoginRecord is one session in the ledger. Username and Email are a
// snapshot taken when the session was opened.
type LoginRecord struct {
	ID          int64      `db:"id"`
	UserID      int64      `db:"user_id"`
	Username    string     `db:"username"`
	Email       string     `db:"email"`
	LoginMethod string     `db:"login_method"`
	IPAddress   *string    `db:"ip_address"`
	IsActive    bool       `db:"is_active"`
	CreatedAt   time.Time  `db:"created_at"`
	LoggedOutAt *time.Time `db:"logged_out_at"`
}
