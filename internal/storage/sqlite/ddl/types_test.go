package ddl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparkify/internal/schema"
	"sparkify/internal/table"
)

func TestMapType(t *testing.T) {
	t.Parallel()

	want := map[schema.Type]string{
		schema.String:  "TEXT",
		schema.Integer: "INTEGER",
		schema.Long:    "INTEGER",
		schema.Double:  "REAL",
		schema.Decimal: "NUMERIC",
		schema.Boolean: "INTEGER",
	}
	for typ, sqlType := range want {
		assert.Equal(t, sqlType, MapType(typ), typ.String())
	}
}

type recorder struct{ stmts []string }

func (r *recorder) Exec(_ context.Context, sql string) error {
	r.stmts = append(r.stmts, sql)
	return nil
}

func TestReplaceTable(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	err := ReplaceTable(context.Background(), rec, "artist", []table.Column{
		{Name: "artist_id", Type: schema.String},
		{Name: "latitude", Type: schema.Double},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		`DROP TABLE IF EXISTS "artist";`,
		"CREATE TABLE \"artist\" (\n  \"artist_id\" TEXT,\n  \"latitude\" REAL\n);",
	}, rec.stmts)
}
