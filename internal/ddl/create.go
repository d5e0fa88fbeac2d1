// Package ddl defines a small, backend-agnostic model for SQL DDL and renders
// CREATE/DROP statements from it. Identifiers are double-quoted, which both
// Postgres and SQLite accept, so names such as "time" and "user" are safe.
// Backend packages (internal/storage/*/ddl) supply the type mapping.
package ddl

import (
	"fmt"
	"strings"
)

// BuildCreateTableSQL renders:
//
//	CREATE TABLE "schema"."table" (
//	  "col1" TYPE [NOT NULL] [DEFAULT expr],
//	  ...,
//	  [PRIMARY KEY ("pk1", ...)]
//	);
//
// Primary-key columns are always NOT NULL. Default is emitted as raw SQL.
func BuildCreateTableSQL(t TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1)
	var pks []string
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}

		var sb strings.Builder
		sb.WriteString(QuoteIdent(name))
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
			pks = append(pks, QuoteIdent(name))
		}
	}
	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", QuoteFQN(fqn), strings.Join(cols, ",\n  ")), nil
}

// BuildDropTableSQL renders DROP TABLE IF EXISTS for fqn.
func BuildDropTableSQL(fqn string) (string, error) {
	if strings.TrimSpace(fqn) == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", QuoteFQN(fqn)), nil
}

// QuoteIdent quotes one identifier segment:
//
//	QuoteIdent(`time`)       => `"time"`
//	QuoteIdent(`weird"name`) => `"weird""name"`
func QuoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// QuoteFQN quotes a possibly schema-qualified name like "lake.users" to
// `"lake"."users"`. Empty segments are ignored.
func QuoteFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, QuoteIdent(p))
	}
	return strings.Join(out, ".")
}
