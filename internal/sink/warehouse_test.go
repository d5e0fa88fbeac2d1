package sink

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparkify/internal/storage"
	_ "sparkify/internal/storage/sqlite"
)

func TestWarehouse_SQLite(t *testing.T) {
	t.Parallel()

	dsn := filepath.Join(t.TempDir(), "lake.db")
	w := NewWarehouse(WarehouseOptions{Job: "test", Kind: "sqlite", DSN: dsn, BatchSize: 2}, nil)
	ctx := context.Background()

	require.NoError(t, w.Write(ctx, songsTable(t), "songs", "year", "artist_id"))
	// A second write replaces the table instead of appending.
	require.NoError(t, w.Write(ctx, songsTable(t), "songs"))

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "songs"`).Scan(&n))
	assert.Equal(t, 4, n)

	var duration int64
	require.NoError(t, db.QueryRow(`SELECT "duration" FROM "songs" WHERE "song_id" = 'S1'`).Scan(&duration))
	assert.Equal(t, int64(262), duration)

	var nulls int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "songs" WHERE "year" IS NULL`).Scan(&nulls))
	assert.Equal(t, 1, nulls)
}

type stubRepo struct {
	copyErr error
	closed  bool
	execs   int
}

func (s *stubRepo) CopyFrom(_ context.Context, _ []string, rows [][]any) (int64, error) {
	return int64(len(rows)), s.copyErr
}
func (s *stubRepo) Exec(context.Context, string) error { s.execs++; return nil }
func (s *stubRepo) Close()                             { s.closed = true }

func TestWarehouse_CopyErrorAndQualifiedName(t *testing.T) {
	t.Parallel()

	boom := errors.New("copy failed")
	repo := &stubRepo{copyErr: boom}
	w := NewWarehouse(WarehouseOptions{Kind: "sqlite", Schema: "lake", BatchSize: 1}, nil)
	var gotTable string
	w.open = func(_ context.Context, cfg storage.Config) (storage.Repository, error) {
		gotTable = cfg.Table
		return repo, nil
	}

	err := w.Write(context.Background(), songsTable(t), "songs")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "lake.songs", gotTable)
	assert.True(t, repo.closed)
	assert.Equal(t, 2, repo.execs)
}

func TestWarehouse_OpenError(t *testing.T) {
	t.Parallel()

	w := NewWarehouse(WarehouseOptions{Kind: "no-such-backend"}, nil)
	assert.Error(t, w.Write(context.Background(), songsTable(t), "songs"))
}

func TestSQLRow(t *testing.T) {
	t.Parallel()

	got := sqlRow([]any{decimal.NewFromInt(200), decimal.New(15, -1), "x", nil, int32(3)})
	assert.Equal(t, []any{int64(200), 1.5, "x", nil, int32(3)}, got)
}
