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

// Statements returns the DDL that replaces fqn with a table shaped like cols:
// CREATE SCHEMA IF NOT EXISTS for a qualified name, then DROP and CREATE.
func Statements(fqn string, cols []table.Column) ([]string, error) {
	var stmts []string
	if i := strings.LastIndex(fqn, "."); i > 0 {
		stmts = append(stmts, "CREATE SCHEMA IF NOT EXISTS "+gddl.QuoteFQN(fqn[:i])+";")
	}
	drop, err := gddl.BuildDropTableSQL(fqn)
	if err != nil {
		return nil, err
	}
	create, err := gddl.BuildCreateTableSQL(gddl.FromColumns(fqn, cols, MapType))
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
