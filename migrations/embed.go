// Package migrations embeds the built-in sqliteop schema.
//
// `sqliteop migrate` applies these when no --dir is given, so the binary
// can set up the Person example database without SQL files on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/sqliteop/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

// Source returns the embedded migrations.
func Source() database.MigrationSource {
	return database.MigrationSource{FS: migrationsFS, Dir: "."}
}
