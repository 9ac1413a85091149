// Package users is the credential store: persistent user records with
// unique username and email.
package users

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository persists users. Lookups of absent users return
// common.ErrorNotFound. Create reports a taken email or username as
// common.ErrEmailExists / common.ErrUsernameExists.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
}
