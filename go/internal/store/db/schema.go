package db

import _ "embed"

// Schema is the DDL for the auction tables, applied at startup and by tests.
//
//go:embed schema.sql
var Schema string
