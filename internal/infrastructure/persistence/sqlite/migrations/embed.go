package migrations

import "embed"

// FS contains embedded SQLite migrations for transcript storage.
//
//go:embed *.sql
var FS embed.FS
