package db

import "embed"

// MigrationFS embeds SQL migration files from internal/db/migrations.
// Read by internal/db/migrate and the store integration tests.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
