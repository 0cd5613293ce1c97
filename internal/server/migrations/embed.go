// Package migrations embeds the goose migrations for the credential store.
// The SQL is written to run unchanged on PostgreSQL and SQLite.
package migrations

import "embed"

// Migrations is the goose base FS; migrations live at its root.
//
//go:embed *.sql
var Migrations embed.FS
