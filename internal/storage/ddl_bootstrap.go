package storage

import (
	"context"
	"fmt"
	"sync"

	"sparkify/internal/table"
)

// DDLBootstrapper (re)creates the destination table for a backend: it drops
// any existing table named fqn and creates it with cols, mapped to the
// backend's SQL types, through repo.Exec.
type DDLBootstrapper func(ctx context.Context, repo Repository, fqn string, cols []table.Column) error

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDLBootstrapper{}
)

// RegisterDDL registers (or replaces) the DDLBootstrapper for kind.
func RegisterDDL(kind string, fn DDLBootstrapper) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = fn
}

// ReplaceTable runs the DDLBootstrapper registered for kind.
func ReplaceTable(ctx context.Context, kind string, repo Repository, fqn string, cols []table.Column) error {
	ddlMu.RLock()
	fn, ok := ddlFns[kind]
	ddlMu.RUnlock()
	if !ok {
		return fmt.Errorf("storage: no DDL bootstrapper registered for kind %q", kind)
	}
	return fn(ctx, repo, fqn, cols)
}
