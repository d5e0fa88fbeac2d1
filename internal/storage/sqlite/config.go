// Package sqlite implements a SQLite-backed storage.Repository.
package sqlite

import "strings"

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:lake.db?_pragma=journal_mode(WAL)"
	//   "lake.db" (interpreted by the driver)
	DSN string

	// Table is the target table name, e.g. "songplays". SQLite has no schemas
	// outside attached databases, so a qualifier such as "lake.songplays" is
	// dropped.
	Table string

	// Columns is the ordered list of destination columns.
	Columns []string
}

// LocalName strips any schema qualifier from fqn.
func LocalName(fqn string) string {
	if i := strings.LastIndex(fqn, "."); i >= 0 {
		return fqn[i+1:]
	}
	return fqn
}
