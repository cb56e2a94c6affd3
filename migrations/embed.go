// Package migrations embeds the Climate Core schema migrations so the
// binary can migrate a fresh database without SQL files on disk.
package migrations

import "embed"

//go:embed *.sql
var files embed.FS

// FS holds every *.up.sql and *.down.sql file at its root. Pass it to
// database.DB.Migrate.
var FS = files
