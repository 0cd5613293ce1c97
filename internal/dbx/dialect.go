package dbx

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/passkeeper/internal/filex"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect describes a relational engine the repositories know how to talk to.
// Queries are shared: both engines accept $N placeholders and
// INSERT ... ON CONFLICT upserts.
type Dialect struct {
	// Name is the human-facing backend name used in configuration.
	Name string
	// Driver is the database/sql driver name.
	Driver string
	// Goose is the goose migration dialect.
	Goose string
}

var (
	Postgres = Dialect{Name: "postgresql", Driver: "pgx", Goose: "pgx"}
	SQLite   = Dialect{Name: "sqlite", Driver: "sqlite", Goose: "sqlite3"}
)

// Open opens a pool for d and verifies the connection. maxConns <= 0 leaves
// the database/sql default (unbounded) in place.
func Open(d Dialect, dsn string, maxConns int) (*sql.DB, error) {
	if d == SQLite {
		if path, ok := sqliteFilePath(dsn); ok {
			if _, err := filex.EnsureParentDir(path); err != nil {
				return nil, fmt.Errorf("db open error: %w", err)
			}
		}
	}

	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if d == SQLite {
		// SQLite has a single writer; more connections only produce SQLITE_BUSY.
		maxConns = 1
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(maxConns)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return db, nil
}

// sqliteFilePath returns the on-disk path named by a SQLite DSN, or false for
// in-memory databases.
func sqliteFilePath(dsn string) (string, bool) {
	path, query, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")
	if path == "" || path == ":memory:" || strings.Contains(query, "mode=memory") {
		return "", false
	}
	return path, true
}
