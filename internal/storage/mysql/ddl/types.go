// Package ddl renders MySQL DDL for lake tables.
package ddl

import "sparkify/internal/schema"

// MapType maps a column type to a MySQL column type.
func MapType(t schema.Type) string {
	switch t {
	case schema.Integer:
		return "INT"
	case schema.Long:
		return "BIGINT"
	case schema.Double:
		return "DOUBLE"
	case schema.Decimal:
		return "DECIMAL(10,0)"
	case schema.Boolean:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}
