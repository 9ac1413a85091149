// Package sessions is the session ledger: one login record per signup or
// login, closed by logout. Records are never deleted by the service.
package sessions

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository persists login records. Lookups of absent records return
// common.ErrorNotFound.
type Repository interface {
	// Create inserts an active record and fills in its id and creation time.
	Create(ctx context.Context, rec *models.LoginRecord) (*models.LoginRecord, error)

	// FindLatestActive returns the user's most recently created active record.
	FindLatestActive(ctx context.Context, userID int64) (*models.LoginRecord, error)

	// CloseAllActive deactivates every active record of the user in one
	// statement and returns how many were closed.
	CloseAllActive(ctx context.Context, userID int64) (int64, error)

	FindByID(ctx context.Context, id int64) (*models.LoginRecord, error)

	// SetStatus activates or deactivates a record. Deactivation stamps the
	// logout time if unset, activation clears it. A nil ip keeps the stored one.
	SetStatus(ctx context.Context, id int64, active bool, ip *string) (*models.LoginRecord, error)

	CountActive(ctx context.Context, userID int64) (int, error)

	// ListByUser returns up to limit records of the user, newest first.
	ListByUser(ctx context.Context, userID int64, limit int) ([]*models.LoginRecord, error)
}
