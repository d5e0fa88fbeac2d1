package sink

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"sparkify/internal/schema"
	"sparkify/internal/table"
)

// readParquet returns the row count and lower-cased column names of a file.
func readParquet(t *testing.T, path string) (int64, []string) {
	t.Helper()
	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, nil, 1)
	require.NoError(t, err)
	defer pr.ReadStop()

	var names []string
	for _, el := range pr.Footer.Schema[1:] {
		names = append(names, strings.ToLower(el.Name))
	}
	return pr.GetNumRows(), names
}

// readColumns returns the values of every leaf column of a file, in schema
// order. Nulls come back as nil.
func readColumns(t *testing.T, path string) [][]interface{} {
	t.Helper()
	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()

	pr, err := reader.NewParquetColumnReader(fr, 1)
	require.NoError(t, err)
	defer pr.ReadStop()

	n := pr.GetNumRows()
	cols := make([][]interface{}, len(pr.SchemaHandler.ValueColumns))
	for i := range cols {
		vals, _, _, err := pr.ReadColumnByIndex(int64(i), n)
		require.NoError(t, err)
		cols[i] = vals
	}
	return cols
}

func TestParseCodec(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]string{
		"":             "part-00001-run.snappy.parquet",
		"SNAPPY":       "part-00001-run.snappy.parquet",
		"gzip":         "part-00001-run.gz.parquet",
		"zstd":         "part-00001-run.zstd.parquet",
		"uncompressed": "part-00001-run.parquet",
		"none":         "part-00001-run.parquet",
	} {
		c, err := ParseCodec(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, c.fileName(1, "run"), in)
	}

	_, err := ParseCodec("lz4")
	assert.Error(t, err)
}

func TestColumnTag(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "name=song_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL",
		columnTag(table.Column{Name: "song_id", Type: schema.String}))
	assert.Equal(t, "name=year, type=INT32, repetitiontype=OPTIONAL",
		columnTag(table.Column{Name: "year", Type: schema.Integer}))
	assert.Equal(t, "name=duration, type=INT64, convertedtype=DECIMAL, scale=0, precision=10, repetitiontype=OPTIONAL",
		columnTag(table.Column{Name: "duration", Type: schema.Decimal}))
}

func TestParquetValue(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int64(262), parquetValue(decimal.NewFromInt(262)))
	assert.Equal(t, "x", parquetValue("x"))
	assert.Nil(t, parquetValue(nil))
}

func TestWriteParquet_RoundTrip(t *testing.T) {
	t.Parallel()

	cols := []table.Column{
		{Name: "start_time", Type: schema.Long},
		{Name: "hour", Type: schema.Integer},
		{Name: "weekday", Type: schema.String},
		{Name: "latitude", Type: schema.Double},
		{Name: "duration", Type: schema.Decimal},
		{Name: "flag", Type: schema.Boolean},
	}
	rows := [][]any{
		{int64(1541121934), int32(1), "Friday", 40.7, decimal.NewFromInt(200), true},
		{nil, nil, nil, nil, nil, nil},
		{int64(1541121935), int32(23), "Saturday", -73.9, decimal.NewFromInt(0), false},
	}

	codec, err := ParseCodec("snappy")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "f.parquet")
	require.NoError(t, writeParquet(path, cols, rows, fileOptions{codec: codec}))

	n, names := readParquet(t, path)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, []string{"start_time", "hour", "weekday", "latitude", "duration", "flag"}, names)

	got := readColumns(t, path)
	require.Len(t, got, len(cols))
	assert.Equal(t, []interface{}{int64(1541121934), nil, int64(1541121935)}, got[0])
	assert.Equal(t, []interface{}{int32(1), nil, int32(23)}, got[1])
	assert.Equal(t, []interface{}{"Friday", nil, "Saturday"}, got[2])
	assert.Equal(t, []interface{}{40.7, nil, -73.9}, got[3])
	assert.Equal(t, []interface{}{int64(200), nil, int64(0)}, got[4], "decimals are stored unscaled")
	assert.Equal(t, []interface{}{true, nil, false}, got[5])
}

func TestWriteParquet_Empty(t *testing.T) {
	t.Parallel()

	codec, err := ParseCodec("gzip")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "empty.parquet")
	require.NoError(t, writeParquet(path, []table.Column{{Name: "user_id", Type: schema.Integer}}, nil, fileOptions{codec: codec}))

	n, names := readParquet(t, path)
	assert.Zero(t, n)
	assert.Equal(t, []string{"user_id"}, names)
}
