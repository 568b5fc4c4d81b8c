// Package migrations embeds the schema of the SQLite cache storage.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
