// Package migrations embeds the postgres schema.
package migrations

import _ "embed"

// Init creates every table if missing; safe to run on each start.
//
//go:embed 0001_init.sql
var Init string
