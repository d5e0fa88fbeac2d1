package postgres

import (
	"context"
	"fmt"

	"sparkify/internal/storage"
	pgddl "sparkify/internal/storage/postgres/ddl"
	"sparkify/internal/table"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

// wrappedRepo implements storage.Repository by delegating to the concrete
// *postgres.Repository while providing a Close method that calls the close
// function returned by NewRepository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

var _ storage.Repository = (*wrappedRepo)(nil)

// Close implements storage.Repository.Close.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

// init registers the "postgres" backend and its DDL bootstrapper, so callers
// pick the backend by kind alone:
//
//	repo, err := storage.New(ctx, storage.Config{Kind: "postgres", ...})
//	defer repo.Close()
//	err = storage.ReplaceTable(ctx, "postgres", repo, "lake.users", cols)
func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{
			DSN:     cfg.DSN,
			Table:   cfg.Table,
			Columns: cfg.Columns,
		})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL("postgres",
		func(ctx context.Context, repo storage.Repository, fqn string, cols []table.Column) error {
			if err := pgddl.ReplaceTable(ctx, repo, fqn, cols); err != nil {
				return fmt.Errorf("apply DDL: %w", err)
			}
			return nil
		})
}
