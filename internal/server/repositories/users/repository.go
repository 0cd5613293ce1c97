package users

import (
	"context"

	"github.com/dmitrijs2005/passkeeper/internal/server/models"
)

type Repository interface {
	// Upsert inserts the row or refreshes its envelope. It reports false when
	// the username digest is already bound to another user handle digest.
	Upsert(ctx context.Context, row *models.UserRow) (bool, error)
	GetByUsernameHash(ctx context.Context, usernameHash string) (*models.UserRow, error)
	GetByUserHandleHash(ctx context.Context, userHandleHash string) (*models.UserRow, error)
	ExistsByUsernameHash(ctx context.Context, usernameHash string) (bool, error)
	ExistsByUserHandleHash(ctx context.Context, userHandleHash string) (bool, error)
}
