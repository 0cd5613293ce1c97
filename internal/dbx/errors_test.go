package dbx

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueViolation_Postgres(t *testing.T) {
	err := fmt.Errorf("db error: %w", &pgconn.PgError{Code: "23505", ConstraintName: "users_user_handle_hash_key"})

	assert.True(t, IsUniqueViolation(err, "users_user_handle_hash_key", "users.user_handle_hash"))
	assert.False(t, IsUniqueViolation(err, "users_pkey", "users.username_hash"))

	fk := &pgconn.PgError{Code: "23503", ConstraintName: "users_user_handle_hash_key"}
	assert.False(t, IsUniqueViolation(fk, "users_user_handle_hash_key", "users.user_handle_hash"))
}

func TestIsUniqueViolation_SQLite(t *testing.T) {
	db, err := Open(SQLite, "file:dbx_unique?mode=memory&cache=shared", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	_, err = db.ExecContext(ctx, `CREATE TABLE t (a TEXT CONSTRAINT t_a_key UNIQUE, b TEXT)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO t (a, b) VALUES ($1, $2)`, "x", "y")
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `INSERT INTO t (a, b) VALUES ($1, $2)`, "x", "z")
	require.Error(t, err)

	assert.True(t, IsUniqueViolation(err, "t_a_key", "t.a"))
	assert.False(t, IsUniqueViolation(err, "t_b_key", "t.b"))
}

func TestIsUniqueViolation_Other(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil, "c", "t.c"))
	assert.False(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: t.c"), "c", "t.c"))
}
