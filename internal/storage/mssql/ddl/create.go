// Package ddl provides MSSQL-specific helpers for generating DDL from the
// generic ddl.TableDef model.
//
// The builders here:
//   - Use SQL Server-style identifier quoting: [schema].[table], [col].
//   - Guard DROP and CREATE SCHEMA with OBJECT_ID / SCHEMA_ID checks, which
//     work on every supported server version.
//   - Treat ColumnDef.Default as raw SQL.
//   - Render PRIMARY KEY constraints as a separate clause.
package ddl

import (
	"fmt"
	"strings"

	gddl "sparkify/internal/ddl"
)

// BuildCreateTableSQL returns a T-SQL statement of the form:
//
//	CREATE TABLE [schema].[table] (
//	  [col1] TYPE [NOT NULL] [DEFAULT expr],
//	  [col2] TYPE,
//	  PRIMARY KEY ([pk1], [pk2])
//	);
//
// FQN must be non-empty and every column needs a Name and SQLType.
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("mssql ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("mssql ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, len(t.Columns))

	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("mssql ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("mssql ddl: column %s missing SQLType", name)
		}

		var sb strings.Builder
		sb.WriteString(quoteIdent(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)

		if !c.Nullable || c.PrimaryKey {
			sb.WriteString(" NOT NULL")
		}

		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}

		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, quoteIdent(name))
		}
	}

	if len(pks) > 0 {
		cols = append(cols,
			fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")),
		)
	}

	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", quoteFQN(fqn), strings.Join(cols, ",\n  ")), nil
}

// BuildDropTableSQL drops fqn if it exists:
//
//	IF OBJECT_ID(N'[lake].[songs]', N'U') IS NOT NULL DROP TABLE [lake].[songs];
func BuildDropTableSQL(fqn string) (string, error) {
	if strings.TrimSpace(fqn) == "" {
		return "", fmt.Errorf("mssql ddl: table FQN must not be empty")
	}
	q := quoteFQN(fqn)
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NOT NULL DROP TABLE %s;", quoteLiteral(q), q), nil
}

// BuildCreateSchemaSQL creates schema name unless it exists. CREATE SCHEMA
// must be alone in its batch, hence the EXEC.
func BuildCreateSchemaSQL(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("mssql ddl: schema name must not be empty")
	}
	create := "CREATE SCHEMA " + quoteIdent(name)
	return fmt.Sprintf("IF SCHEMA_ID(N'%s') IS NULL EXEC(N'%s');", quoteLiteral(name), quoteLiteral(create)), nil
}

// quoteIdent quotes a single identifier segment for SQL Server using
// bracket syntax, escaping any closing brackets.
//
//	name      -> [name]
//	weird]id  -> [weird]]id]
func quoteIdent(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}

// quoteFQN quotes a possibly schema-qualified table name, e.g.:
//
//	"lake.songs"  -> [lake].[songs]
//	"songs"       -> [songs]
//	"a.b.c"       -> [a].[b].[c]
func quoteFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, quoteIdent(p))
	}
	return strings.Join(out, ".")
}

// quoteLiteral escapes s for use inside N'...'.
func quoteLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
