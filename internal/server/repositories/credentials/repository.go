package credentials

import (
	"context"

	"github.com/dmitrijs2005/passkeeper/internal/server/models"
)

type Repository interface {
	// Upsert inserts the row or refreshes its envelope. It reports false when
	// the credential id digest is owned by another user handle digest.
	Upsert(ctx context.Context, row *models.CredentialRow) (bool, error)
	// UpdateEnvelope rewrites the envelope of the row matching both digests
	// and reports whether such a row existed.
	UpdateEnvelope(ctx context.Context, credentialIDHash, userHandleHash, envelope string) (bool, error)
	// CountByUserHandleHash counts the credentials owned by userHandleHash,
	// leaving out exceptIDHash.
	CountByUserHandleHash(ctx context.Context, userHandleHash, exceptIDHash string) (int, error)
	ListByUsernameHash(ctx context.Context, usernameHash string) ([]*models.CredentialRow, error)
	ListByIDHash(ctx context.Context, credentialIDHash string) ([]*models.CredentialRow, error)
	Get(ctx context.Context, credentialIDHash, userHandleHash string) (*models.CredentialRow, error)
}
