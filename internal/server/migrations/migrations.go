// Package migrations embeds the goose SQL migrations for the PostgreSQL
// record index.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
