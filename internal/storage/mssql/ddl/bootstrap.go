package ddl

import (
	"context"
	"strings"

	gddl "sparkify/internal/ddl"
	"sparkify/internal/table"
)

// Executor is the subset of storage.Repository the bootstrapper needs.
type Executor interface {
	Exec(ctx context.Context, sql string) error
}

// Statements returns the T-SQL that replaces fqn with a table shaped like
// cols: the schema guard for a qualified name, then DROP and CREATE.
func Statements(fqn string, cols []table.Column) ([]string, error) {
	var stmts []string
	if i := strings.LastIndex(fqn, "."); i > 0 {
		s, err := BuildCreateSchemaSQL(fqn[:i])
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	drop, err := BuildDropTableSQL(fqn)
	if err != nil {
		return nil, err
	}
	create, err := BuildCreateTableSQL(gddl.FromColumns(fqn, cols, MapType))
	if err != nil {
		return nil, err
	}
	return append(stmts, drop, create), nil
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
