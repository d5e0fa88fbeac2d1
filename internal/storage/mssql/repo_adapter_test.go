package mssql

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"sparkify/internal/schema"
	"sparkify/internal/storage"
	"sparkify/internal/table"
)

// TestMSSQLStorageRegistrationUsesNewRepositoryHook verifies that the "mssql"
// storage backend registered in init() uses the newRepository hook and that
// the wrappedRepo correctly propagates configuration and close behavior.
func TestMSSQLStorageRegistrationUsesNewRepositoryHook(t *testing.T) {
	ctx := context.Background()

	// Save and restore global hook.
	origNewRepository := newRepository
	defer func() { newRepository = origNewRepository }()

	var (
		called   bool
		gotCfg   Config
		closed   bool
		fakeRepo = &Repository{}
	)

	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		called = true
		gotCfg = cfg
		return fakeRepo, func() { closed = true }, nil
	}

	cfg := storage.Config{
		Kind:    "mssql",
		DSN:     "sqlserver://example",
		Table:   "lake.songs",
		Columns: []string{"song_id", "title"},
	}

	repo, err := storage.New(ctx, cfg)
	if err != nil {
		t.Fatalf("storage.New() error = %v, want nil", err)
	}
	if !called {
		t.Fatalf("newRepository hook was not called")
	}
	if gotCfg.DSN != cfg.DSN || gotCfg.Table != cfg.Table || len(gotCfg.Columns) != 2 {
		t.Errorf("hook cfg = %+v; want values from %+v", gotCfg, cfg)
	}

	w, ok := repo.(*wrappedRepo)
	if !ok {
		t.Fatalf("storage.New() type = %T, want *wrappedRepo", repo)
	}
	if w.Repository != fakeRepo {
		t.Fatalf("wrappedRepo.Repository = %p, want %p", w.Repository, fakeRepo)
	}

	repo.Close()
	if !closed {
		t.Fatalf("wrappedRepo.Close() did not invoke closeFn")
	}
}

func TestMSSQLStorageRegistrationPropagatesError(t *testing.T) {
	origNewRepository := newRepository
	defer func() { newRepository = origNewRepository }()

	boom := errors.New("boom")
	newRepository = func(context.Context, Config) (*Repository, func(), error) {
		return nil, nil, boom
	}
	if _, err := storage.New(context.Background(), storage.Config{Kind: "mssql"}); !errors.Is(err, boom) {
		t.Fatalf("storage.New() error = %v; want %v", err, boom)
	}
}

func TestNewRepository_BadDSN(t *testing.T) {
	_, _, err := NewRepository(context.Background(), Config{DSN: "sqlserver://host:notaport?database=x"})
	if err == nil {
		t.Fatalf("NewRepository() error = nil; want DSN error")
	}
}

// TestCopyFromEmptyRows verifies that CopyFrom short-circuits when no rows
// are provided and does not require a live database connection.
func TestCopyFromEmptyRows(t *testing.T) {
	r := &Repository{cfg: Config{Table: "lake.t", Columns: []string{"a"}}}
	n, err := r.CopyFrom(context.Background(), nil, nil)
	if err != nil || n != 0 {
		t.Fatalf("CopyFrom(nil) = %d, %v; want 0, nil", n, err)
	}
}

// TestMsIdent verifies that msIdent properly brackets SQL Server identifiers
// and escapes closing brackets.
func TestMsIdent(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"simple", "[simple]"},
		{"brack]et", "[brack]]et]"},
		{`weird]]name`, `[weird]]]]name]`},
	}
	for _, tc := range cases {
		if got := msIdent(tc.in); got != tc.want {
			t.Fatalf("msIdent(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestMsFQN(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"songs", "[songs]"},
		{"lake.songs", "[lake].[songs]"},
	}
	for _, tc := range cases {
		if got := msFQN(tc.in); got != tc.want {
			t.Fatalf("msFQN(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

// TestReplaceAndCopy_Integration runs against a real server when
// MSSQL_TEST_DSN is set.
func TestReplaceAndCopy_Integration(t *testing.T) {
	dsn := os.Getenv("MSSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MSSQL_TEST_DSN not set; skipping MSSQL integration tests")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cols := []table.Column{
		{Name: "user_id", Type: schema.Integer},
		{Name: "level", Type: schema.String},
	}
	repo, err := storage.New(ctx, storage.Config{
		Kind: "mssql", DSN: dsn, Table: "sparkify_test.users", Columns: []string{"user_id", "level"},
	})
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	defer repo.Close()

	if err := storage.ReplaceTable(ctx, "mssql", repo, "sparkify_test.users", cols); err != nil {
		t.Fatalf("ReplaceTable() error = %v", err)
	}
	n, err := repo.CopyFrom(ctx, nil, [][]any{{int32(10), "paid"}, {nil, nil}})
	if err != nil {
		t.Fatalf("CopyFrom() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("CopyFrom() = %d; want 2", n)
	}
}
