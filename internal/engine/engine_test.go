package engine

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparkify/internal/config"
	"sparkify/internal/datasource"
	"sparkify/internal/schema"
	"sparkify/internal/sink"
	"sparkify/internal/table"
)

func testConfig(input, output string) *config.Config {
	cfg := &config.Config{Job: "test"}
	cfg.Input = config.InputConfig{
		Root:        input,
		SongGlob:    "song_data/*/*/*/*.json",
		LogGlob:     "log_data/*/*/*.json",
		ReadWorkers: 2,
	}
	cfg.Output = config.OutputConfig{Root: output}
	cfg.Sink = config.SinkConfig{Compression: "snappy", RowGroupMB: 1, MaxRowsPerFile: 1000}
	cfg.Runtime = config.RuntimeConfig{Workers: 2, ChunkRows: 2, Timezone: "UTC"}
	return cfg
}

func writeFile(t *testing.T, root, rel, body string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
}

func TestReadRecords_Logs(t *testing.T) {
	t.Parallel()
	in := t.TempDir()
	writeFile(t, in, "log_data/2018/11/2018-11-02-events.json",
		`{"userId":"39","page":"NextSong","ts":1541121934796}`+"\n"+`{broken`+"\n")
	writeFile(t, in, "log_data/2018/11/2018-11-01-events.json",
		`{"userId":8,"page":"Home","ts":1541105830796}`+"\n")
	writeFile(t, in, "log_data/2018/11/notes.txt", "ignored")

	s, err := Open(context.Background(), testConfig(in, t.TempDir()), nil, Options{Sink: sink.NewMemory(nil)})
	require.NoError(t, err)
	defer s.Close()

	tb, err := s.ReadRecords(context.Background(), schema.Log)
	require.NoError(t, err)
	require.Equal(t, 3, tb.Len())
	assert.Equal(t, schema.MustFor(schema.Log).Names(), tb.Names())

	// Files are concatenated in name order: 11-01 first.
	assert.Equal(t, int32(8), tb.Get(0, "userId"))
	assert.Equal(t, int32(39), tb.Get(1, "userId"))
	assert.Equal(t, int64(1541121934796), tb.Get(1, "ts"))
	assert.Nil(t, tb.Get(2, "userId"), "corrupt line is an all-null row")

	st := s.Stats()
	assert.Equal(t, int64(2), st.Files)
	assert.Equal(t, int64(3), st.Records)
	assert.Equal(t, int64(1), st.ParseErrors)
}

// flakyStore serves files from memory; names absent from files fail to open.
type flakyStore struct {
	names []string
	files map[string]string
}

func (f flakyStore) Glob(context.Context, string) ([]string, error) { return f.names, nil }

func (f flakyStore) Source(name string) datasource.Source {
	return flakySource{body: f.files[name], ok: f.files[name] != ""}
}

type flakySource struct {
	body string
	ok   bool
}

func (s flakySource) Open(context.Context) (io.ReadCloser, error) {
	if !s.ok {
		return nil, errors.New("permission denied")
	}
	return io.NopCloser(strings.NewReader(s.body)), nil
}

func TestReadRecords_UnreadableFileSkipped(t *testing.T) {
	t.Parallel()

	store := flakyStore{
		names: []string{"a.json", "b.json"},
		files: map[string]string{"b.json": `{"userId":"7","page":"NextSong"}` + "\n"},
	}
	s, err := Open(context.Background(), testConfig("mem", t.TempDir()), nil,
		Options{Input: store, Sink: sink.NewMemory(nil)})
	require.NoError(t, err)

	tb, err := s.ReadRecords(context.Background(), schema.Log)
	require.NoError(t, err)
	require.Equal(t, 1, tb.Len())
	assert.Equal(t, int32(7), tb.Get(0, "userId"))

	st := s.Stats()
	assert.Equal(t, int64(1), st.Files)
	assert.Equal(t, int64(1), st.Unreadable)
}

func TestReadRecords_AllUnreadableIsEmpty(t *testing.T) {
	t.Parallel()

	store := flakyStore{names: []string{"a.json"}}
	s, err := Open(context.Background(), testConfig("mem", t.TempDir()), nil,
		Options{Input: store, Sink: sink.NewMemory(nil)})
	require.NoError(t, err)

	tb, err := s.ReadRecords(context.Background(), schema.Catalog)
	require.NoError(t, err)
	assert.Zero(t, tb.Len())
	assert.Equal(t, schema.MustFor(schema.Catalog).Names(), tb.Names())
}

func TestReadRecords_CanceledIsFatal(t *testing.T) {
	t.Parallel()

	store := flakyStore{names: []string{"a.json"}}
	s, err := Open(context.Background(), testConfig("mem", t.TempDir()), nil,
		Options{Input: store, Sink: sink.NewMemory(nil)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.ReadRecords(ctx, schema.Log)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadRecords_MissingInput(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "nope")
	s, err := Open(context.Background(), testConfig(missing, t.TempDir()), nil, Options{Sink: sink.NewMemory(nil)})
	require.NoError(t, err)

	tb, err := s.ReadRecords(context.Background(), schema.Catalog)
	require.NoError(t, err)
	assert.Zero(t, tb.Len())
	assert.Equal(t, schema.MustFor(schema.Catalog).Names(), tb.Names())
}

func TestReadRecords_UnknownKind(t *testing.T) {
	t.Parallel()

	s, err := Open(context.Background(), testConfig(t.TempDir(), t.TempDir()), nil, Options{Sink: sink.NewMemory(nil)})
	require.NoError(t, err)
	_, err = s.ReadRecords(context.Background(), schema.Kind("other"))
	assert.Error(t, err)
}

func TestOpen_DryRunUsesMemory(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t.TempDir(), t.TempDir())
	cfg.Sink.DryRun = true
	s, err := Open(context.Background(), cfg, nil, Options{RunID: "fixed"})
	require.NoError(t, err)
	assert.IsType(t, &sink.Memory{}, s.Sink())
	assert.Equal(t, "fixed", s.RunID())
}

func TestOpen_WarehouseAddsMirror(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t.TempDir(), t.TempDir())
	cfg.Warehouse = config.WarehouseConfig{Kind: "sqlite", DSN: ":memory:", BatchSize: 10}
	s, err := Open(context.Background(), cfg, nil, Options{})
	require.NoError(t, err)
	m, ok := s.Sink().(sink.Multi)
	require.True(t, ok)
	assert.Len(t, m, 2)
	assert.NotEmpty(t, s.RunID())
}

func TestOpen_BadTimezone(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t.TempDir(), t.TempDir())
	cfg.Runtime.Timezone = "Mars/Olympus_Mons"
	_, err := Open(context.Background(), cfg, nil, Options{})
	assert.Error(t, err)
}

func TestSession_WriteToLake(t *testing.T) {
	t.Parallel()

	out := t.TempDir()
	s, err := Open(context.Background(), testConfig(t.TempDir(), out), nil, Options{RunID: "r1"})
	require.NoError(t, err)

	tb, err := table.New([]table.Column{{Name: "user_id", Type: schema.Integer}}, [][]any{{int32(1)}, {int32(2)}})
	require.NoError(t, err)
	require.NoError(t, s.Write(context.Background(), tb, "users"))
	require.NoError(t, s.Close())

	assert.FileExists(t, filepath.Join(out, "users", "_SUCCESS"))
	assert.FileExists(t, filepath.Join(out, "users", "part-00000-r1.snappy.parquet"))
	assert.NoDirExists(t, filepath.Join(out, "_temporary"))

	st := s.Stats()
	assert.Equal(t, int64(1), st.Tables)
	assert.Equal(t, int64(2), st.RowsWritten)
}
