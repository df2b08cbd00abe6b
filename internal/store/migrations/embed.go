// Package migrations embeds the SQL schema for each catalog dialect.
package migrations

import "embed"

//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
