// Package migrations embeds the warehouse schema migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
