// Package migrations embeds the local key-value schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
