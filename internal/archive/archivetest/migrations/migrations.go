// Package migrations embeds the archive schema DDL used to build test
// fixture archives. Production code never migrates the archive; it is a
// foreign, read-only store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
