// Package migrations embeds the goose SQL migrations for the road-network
// schema so they ship inside the binary.
package migrations

import "embed"

//go:embed postgres/*.sql
var PostgresMigrations embed.FS
