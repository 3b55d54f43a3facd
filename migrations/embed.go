// Package migrations embeds the SurrealDB schema scripts applied at startup
// and by the test database.
package migrations

import "embed"

// FS holds every *.surql script in this directory
//
//go:embed *.surql
var FS embed.FS
