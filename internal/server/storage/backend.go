package storage

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/passkeeper/internal/common"
	"github.com/dmitrijs2005/passkeeper/internal/dbx"
)

// CredentialBackend names the relational engine behind the credential store.
type CredentialBackend string

const (
	CredentialPostgres CredentialBackend = "postgresql"
	CredentialSQLite   CredentialBackend = "sqlite"
)

// RequestBackend names where ceremony requests are parked.
type RequestBackend string

const (
	RequestMemory RequestBackend = "memory"
	RequestRedis  RequestBackend = "redis"
)

// ParseCredentialBackend fails with common.ErrConfiguration for unknown names.
func ParseCredentialBackend(name string) (CredentialBackend, error) {
	switch b := CredentialBackend(strings.ToLower(strings.TrimSpace(name))); b {
	case CredentialPostgres, CredentialSQLite:
		return b, nil
	}
	return "", fmt.Errorf("%w: unknown credential backend %q", common.ErrConfiguration, name)
}

// ParseRequestBackend fails with common.ErrConfiguration for unknown names.
func ParseRequestBackend(name string) (RequestBackend, error) {
	switch b := RequestBackend(strings.ToLower(strings.TrimSpace(name))); b {
	case RequestMemory, RequestRedis:
		return b, nil
	}
	return "", fmt.Errorf("%w: unknown request backend %q", common.ErrConfiguration, name)
}

// Dialect returns the SQL dialect for b.
func (b CredentialBackend) Dialect() dbx.Dialect {
	if b == CredentialSQLite {
		return dbx.SQLite
	}
	return dbx.Postgres
}
