// Package credentials stores credential rows keyed by the digest of the
// credential id.
package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/passkeeper/internal/common"
	"github.com/dmitrijs2005/passkeeper/internal/dbx"
	"github.com/dmitrijs2005/passkeeper/internal/server/models"
)

type SQLRepository struct {
	db dbx.DBTX
}

func NewSQLRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Upsert(ctx context.Context, row *models.CredentialRow) (bool, error) {
	query :=
		`INSERT INTO credentials (credential_id_hash, user_handle_hash, envelope)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (credential_id_hash) DO UPDATE
		 SET envelope = excluded.envelope, updated_at = CURRENT_TIMESTAMP
		 WHERE credentials.user_handle_hash = excluded.user_handle_hash
		 `

	res, err := r.db.ExecContext(ctx, query, row.CredentialIDHash, row.UserHandleHash, row.Envelope)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return affected(res)
}

func (r *SQLRepository) UpdateEnvelope(ctx context.Context, credentialIDHash, userHandleHash, envelope string) (bool, error) {
	query :=
		`UPDATE credentials SET envelope = $3, updated_at = CURRENT_TIMESTAMP
		 WHERE credential_id_hash = $1 AND user_handle_hash = $2
		 `

	res, err := r.db.ExecContext(ctx, query, credentialIDHash, userHandleHash, envelope)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return affected(res)
}

func (r *SQLRepository) CountByUserHandleHash(ctx context.Context, userHandleHash, exceptIDHash string) (int, error) {
	query :=
		`SELECT COUNT(*) FROM credentials
		 WHERE user_handle_hash = $1 AND credential_id_hash <> $2
		 `

	var n int
	if err := r.db.QueryRowContext(ctx, query, userHandleHash, exceptIDHash).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *SQLRepository) ListByUsernameHash(ctx context.Context, usernameHash string) ([]*models.CredentialRow, error) {
	query :=
		`SELECT c.credential_id_hash, c.user_handle_hash, c.envelope
		 FROM credentials c
		 JOIN users u ON u.user_handle_hash = c.user_handle_hash
		 WHERE u.username_hash = $1
		 ORDER BY c.created_at, c.credential_id_hash
		 `

	return r.list(ctx, query, usernameHash)
}

func (r *SQLRepository) ListByIDHash(ctx context.Context, credentialIDHash string) ([]*models.CredentialRow, error) {
	query :=
		`SELECT credential_id_hash, user_handle_hash, envelope FROM credentials
		 WHERE credential_id_hash = $1
		 `

	return r.list(ctx, query, credentialIDHash)
}

func (r *SQLRepository) Get(ctx context.Context, credentialIDHash, userHandleHash string) (*models.CredentialRow, error) {
	query :=
		`SELECT credential_id_hash, user_handle_hash, envelope FROM credentials
		 WHERE credential_id_hash = $1 AND user_handle_hash = $2
		 `

	row := &models.CredentialRow{}
	err := r.db.QueryRowContext(ctx, query, credentialIDHash, userHandleHash).
		Scan(&row.CredentialIDHash, &row.UserHandleHash, &row.Envelope)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return row, nil
}

func (r *SQLRepository) list(ctx context.Context, query string, args ...any) ([]*models.CredentialRow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.CredentialRow
	for rows.Next() {
		row := &models.CredentialRow{}
		if err := rows.Scan(&row.CredentialIDHash, &row.UserHandleHash, &row.Envelope); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}
