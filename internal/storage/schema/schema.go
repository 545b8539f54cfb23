// Package schema embeds the DDL for each supported database.
package schema

import (
	_ "embed"
	"strings"
)

//go:embed sqlite.sql
var SQLite string

//go:embed postgres.sql
var Postgres string

// Statements splits a schema file into individual statements.
func Statements(ddl string) []string {
	var out []string
	for _, stmt := range strings.Split(ddl, ";\n") {
		st := strings.TrimSpace(stmt)
		if st == "" {
			continue
		}
		out = append(out, st)
	}
	return out
}
