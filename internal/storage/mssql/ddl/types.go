// Package ddl contains MSSQL-specific helpers for generating DDL.
package ddl

import "sparkify/internal/schema"

// MapType maps a column type to a SQL Server column type. Text is
// NVARCHAR(MAX) since catalog and log strings have no agreed bound.
func MapType(t schema.Type) string {
	switch t {
	case schema.Integer:
		return "INT"
	case schema.Long:
		return "BIGINT"
	case schema.Double:
		return "FLOAT"
	case schema.Decimal:
		return "DECIMAL(10, 0)"
	case schema.Boolean:
		return "BIT"
	default:
		return "NVARCHAR(MAX)"
	}
}
