// Package ddl contains SQLite-specific helpers for generating DDL.
package ddl

import "sparkify/internal/schema"

// MapType maps a column type to a SQLite type affinity:
//   - integer, long, boolean -> INTEGER (booleans are stored as 0/1)
//   - double                 -> REAL
//   - decimal                -> NUMERIC
//   - everything else        -> TEXT
func MapType(t schema.Type) string {
	switch t {
	case schema.Integer, schema.Long, schema.Boolean:
		return "INTEGER"
	case schema.Double:
		return "REAL"
	case schema.Decimal:
		return "NUMERIC"
	default:
		return "TEXT"
	}
}
