package ddl

import (
	"context"
	"fmt"
	"strings"

	gddl "sparkify/internal/ddl"
	"sparkify/internal/table"
)

// Executor is the subset of storage.Repository the bootstrapper needs.
type Executor interface {
	Exec(ctx context.Context, sql string) error
}

// BuildCreateTableSQL renders CREATE TABLE with backtick-quoted names.
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("mysql ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("mysql ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1)
	var pks []string
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("mysql ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("mysql ddl: column %s missing SQLType", name)
		}
		col := quoteIdent(name) + " " + typ
		if !c.Nullable || c.PrimaryKey {
			col += " NOT NULL"
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			col += " DEFAULT " + def
		}
		cols = append(cols, col)
		if c.PrimaryKey {
			pks = append(pks, quoteIdent(name))
		}
	}
	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", quoteFQN(fqn), strings.Join(cols, ",\n  ")), nil
}

// Statements returns the DDL that replaces fqn with a table shaped like
// cols. A qualifier names a database, which is created when missing.
func Statements(fqn string, cols []table.Column) ([]string, error) {
	if strings.TrimSpace(fqn) == "" {
		return nil, fmt.Errorf("mysql ddl: table FQN must not be empty")
	}
	var stmts []string
	if i := strings.LastIndex(fqn, "."); i > 0 {
		stmts = append(stmts, "CREATE DATABASE IF NOT EXISTS "+quoteIdent(fqn[:i])+";")
	}
	create, err := BuildCreateTableSQL(gddl.FromColumns(fqn, cols, MapType))
	if err != nil {
		return nil, err
	}
	return append(stmts, "DROP TABLE IF EXISTS "+quoteFQN(fqn)+";", create), nil
}

// ReplaceTable drops and recreates fqn through repo.
func ReplaceTable(ctx context.Context, repo Executor, fqn string, cols []table.Column) error {
	stmts, err := Statements(fqn, cols)
	if err != nil {
		return err
	}
	for _, s := range stmts {
		if err := repo.Exec(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func quoteIdent(id string) string {
	return "`" + strings.ReplaceAll(id, "`", "``") + "`"
}

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
