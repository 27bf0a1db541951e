// Package migrations holds the numbered schema files for the checkpoint and
// vector databases. Store.migrate applies them in order.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
