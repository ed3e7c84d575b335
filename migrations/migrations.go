// Package migrations embeds the schema files applied at startup and by issuectl migrate.
package migrations

import "embed"

// Postgres holds the ordered migrations for the pgx store.
//
//go:embed postgres/*.sql
var Postgres embed.FS

// SQLite holds the ordered migrations for the embedded store.
//
//go:embed sqlite/*.sql
var SQLite embed.FS
