// Package storage contains the backend-agnostic contract for the SQL
// warehouse mirror, a registry of backend factories, and a batched loader.
// Backends (postgres, sqlite, mssql, mysql) register themselves at init
// time; importing internal/storage/all enables every built-in backend.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Repository is a write handle on one destination table.
type Repository interface {
	// CopyFrom bulk-inserts rows aligned to columns and returns the number of
	// rows the backend reports as inserted.
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)
	// Exec runs one statement, typically DDL.
	Exec(ctx context.Context, sql string) error
	Close()
}

// Config selects a backend and a destination table.
type Config struct {
	Kind    string   // registered backend kind, e.g. "postgres"
	DSN     string   // backend connection string
	Table   string   // destination table, optionally schema-qualified
	Columns []string // ordered destination columns
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens a Repository with the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: no backend registered for kind %q (known: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds lists the registered backend kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
