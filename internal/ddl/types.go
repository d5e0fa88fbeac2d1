package ddl

import (
	"sparkify/internal/schema"
	"sparkify/internal/table"
)

// ColumnDef describes a single column in a table definition.
//
// Fields:
//   - Name: logical column name (unquoted; quoting happens at render time)
//   - SQLType: target SQL type (e.g., TEXT, BIGINT, NUMERIC(10,0))
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
//   - Default: raw default expression (e.g., 'anon', CURRENT_TIMESTAMP)
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Default    string
}

// TableDef holds the table name and an ordered list of columns. The FQN is
// expected in dotted form ("schema.table") and is quoted by renderers.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// TypeMapper maps a column type to a dialect SQL type.
type TypeMapper func(schema.Type) string

// FromColumns builds a TableDef for lake table columns. Every column is
// nullable; lake tables carry no keys.
func FromColumns(fqn string, cols []table.Column, mapType TypeMapper) TableDef {
	def := TableDef{FQN: fqn, Columns: make([]ColumnDef, len(cols))}
	for i, c := range cols {
		def.Columns[i] = ColumnDef{Name: c.Name, SQLType: mapType(c.Type), Nullable: true}
	}
	return def
}
