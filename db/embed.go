// Package db embeds the database schema and seed fixtures.
package db

import _ "embed"

// Schema contains the DDL for venues, discount rules, bookings and API keys.
// Every statement is idempotent so it can run on each start.
//
//go:embed migrations/001_schema.sql
var Schema string

// SeedFixture is the default fixture loaded by seed-db.
//
//go:embed seed/venues.yaml
var SeedFixture []byte
