// Package migrations embeds the SERP cache schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
