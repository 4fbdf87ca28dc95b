package migrations

import "embed"

// FS contains the embedded SQLite migrations for the match log.
//
//go:embed *.sql
var FS embed.FS
