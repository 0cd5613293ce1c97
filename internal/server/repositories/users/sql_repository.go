package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/passkeeper/internal/common"
	"github.com/dmitrijs2005/passkeeper/internal/dbx"
	"github.com/dmitrijs2005/passkeeper/internal/server/models"
)

// Constraint guarding the one-username-per-handle binding.
const (
	handleConstraint = "users_user_handle_hash_key"
	handleColumn     = "users.user_handle_hash"
)

// SQLRepository runs on every dbx.Dialect; the statements are portable.
type SQLRepository struct {
	db dbx.DBTX
}

func NewSQLRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db}
}

// Upsert writes row. It reports false when the username or the user handle is
// already bound to the other side of a different pair.
func (r *SQLRepository) Upsert(ctx context.Context, row *models.UserRow) (bool, error) {
	query :=
		`INSERT INTO users (username_hash, user_handle_hash, envelope)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (username_hash) DO UPDATE
		 SET envelope = excluded.envelope, updated_at = CURRENT_TIMESTAMP
		 WHERE users.user_handle_hash = excluded.user_handle_hash
		 `

	res, err := r.db.ExecContext(ctx, query, row.UsernameHash, row.UserHandleHash, row.Envelope)
	if dbx.IsUniqueViolation(err, handleConstraint, handleColumn) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return n > 0, nil
}

func (r *SQLRepository) GetByUsernameHash(ctx context.Context, usernameHash string) (*models.UserRow, error) {
	query :=
		`SELECT username_hash, user_handle_hash, envelope FROM users
		 WHERE username_hash = $1
		 `

	return r.getOne(ctx, query, usernameHash)
}

func (r *SQLRepository) GetByUserHandleHash(ctx context.Context, userHandleHash string) (*models.UserRow, error) {
	query :=
		`SELECT username_hash, user_handle_hash, envelope FROM users
		 WHERE user_handle_hash = $1
		 `

	return r.getOne(ctx, query, userHandleHash)
}

func (r *SQLRepository) ExistsByUsernameHash(ctx context.Context, usernameHash string) (bool, error) {
	query :=
		`SELECT EXISTS (SELECT 1 FROM users WHERE username_hash = $1)
		 `

	return r.exists(ctx, query, usernameHash)
}

func (r *SQLRepository) ExistsByUserHandleHash(ctx context.Context, userHandleHash string) (bool, error) {
	query :=
		`SELECT EXISTS (SELECT 1 FROM users WHERE user_handle_hash = $1)
		 `

	return r.exists(ctx, query, userHandleHash)
}

func (r *SQLRepository) getOne(ctx context.Context, query string, arg string) (*models.UserRow, error) {
	row := &models.UserRow{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&row.UsernameHash, &row.UserHandleHash, &row.Envelope)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return row, nil
}

func (r *SQLRepository) exists(ctx context.Context, query string, arg string) (bool, error) {
	var ok bool
	if err := r.db.QueryRowContext(ctx, query, arg).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}
