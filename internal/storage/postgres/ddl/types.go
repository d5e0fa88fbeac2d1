// Package ddl contains Postgres-specific helpers for generating DDL.
package ddl

import "sparkify/internal/schema"

// MapType maps a column type to its Postgres SQL type.
//
//	string  -> TEXT
//	integer -> INTEGER
//	long    -> BIGINT
//	double  -> DOUBLE PRECISION
//	decimal -> NUMERIC(10,0)
//	boolean -> BOOLEAN
func MapType(t schema.Type) string {
	switch t {
	case schema.Integer:
		return "INTEGER"
	case schema.Long:
		return "BIGINT"
	case schema.Double:
		return "DOUBLE PRECISION"
	case schema.Decimal:
		return "NUMERIC(10,0)"
	case schema.Boolean:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}
