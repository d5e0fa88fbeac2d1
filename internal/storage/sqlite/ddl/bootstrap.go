package ddl

import (
	"context"

	gddl "sparkify/internal/ddl"
	"sparkify/internal/table"
)

// Executor is the subset of storage.Repository the bootstrapper needs.
type Executor interface {
	Exec(ctx context.Context, sql string) error
}

// ReplaceTable drops name if it exists and creates it with cols.
func ReplaceTable(ctx context.Context, repo Executor, name string, cols []table.Column) error {
	drop, err := gddl.BuildDropTableSQL(name)
	if err != nil {
		return err
	}
	create, err := gddl.BuildCreateTableSQL(gddl.FromColumns(name, cols, MapType))
	if err != nil {
		return err
	}
	if err := repo.Exec(ctx, drop); err != nil {
		return err
	}
	return repo.Exec(ctx, create)
}
