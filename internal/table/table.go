// Package table is a small in-memory columnar-ish engine: a Table is an
// ordered list of typed columns plus positional rows, and every operation
// returns a new Table. Bulk operations split the rows into chunks and run
// them on a bounded worker pool.
//
// Tables are immutable once built. Operations never modify the rows of their
// input; derived tables may share row slices with it.
package table

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"sparkify/internal/schema"
)

// Column is one typed column.
type Column struct {
	Name string
	Type schema.Type
}

// Exec controls data parallelism for bulk operations.
type Exec struct {
	Workers   int // concurrent chunks; <=0 means GOMAXPROCS
	ChunkRows int // rows per chunk; <=0 means DefaultChunkRows
}

// DefaultChunkRows is used when Exec.ChunkRows is unset.
const DefaultChunkRows = 64 * 1024

func (x *Exec) workers() int {
	if x == nil || x.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return x.Workers
}

func (x *Exec) chunkRows() int {
	if x == nil || x.ChunkRows <= 0 {
		return DefaultChunkRows
	}
	return x.ChunkRows
}

// Table is an immutable, typed row set.
type Table struct {
	cols []Column
	rows [][]any
	exec *Exec
}

// New builds a table. Every row must have len(cols) values.
func New(cols []Column, rows [][]any) (*Table, error) {
	for i, r := range rows {
		if len(r) != len(cols) {
			return nil, fmt.Errorf("table: row %d has %d values, want %d", i, len(r), len(cols))
		}
	}
	return &Table{cols: append([]Column(nil), cols...), rows: rows}, nil
}

// FromSchema builds a table whose columns are the fields of s.
func FromSchema(s schema.Schema, rows [][]any) (*Table, error) {
	cols := make([]Column, len(s))
	for i, f := range s {
		cols[i] = Column{Name: f.Name, Type: f.Type}
	}
	return New(cols, rows)
}

// WithExec returns a shallow copy of t that runs bulk operations with x.
// Tables derived from the copy inherit x.
func (t *Table) WithExec(x *Exec) *Table {
	out := *t
	out.exec = x
	return &out
}

func (t *Table) derive(cols []Column, rows [][]any) *Table {
	return &Table{cols: cols, rows: rows, exec: t.exec}
}

// Columns returns a copy of the column list.
func (t *Table) Columns() []Column { return append([]Column(nil), t.cols...) }

// Names returns the column names in order.
func (t *Table) Names() []string {
	out := make([]string, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.Name
	}
	return out
}

// Len is the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Row returns row i. Callers must not modify it.
func (t *Table) Row(i int) []any { return t.rows[i] }

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.cols {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Get returns the value of column name in row i, or nil when the column does
// not exist.
func (t *Table) Get(i int, name string) any {
	j := t.Index(name)
	if j < 0 {
		return nil
	}
	return t.rows[i][j]
}

// Field picks a source column and the name it takes in the result.
type Field struct {
	Src  string
	Name string
}

// Col selects column name unchanged.
func Col(name string) Field { return Field{Src: name, Name: name} }

// As renames the selected column.
func (f Field) As(name string) Field {
	f.Name = name
	return f
}

// Select projects t onto fields, in the order given.
func (t *Table) Select(fields ...Field) (*Table, error) {
	idx := make([]int, len(fields))
	cols := make([]Column, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for i, f := range fields {
		j := t.Index(f.Src)
		if j < 0 {
			return nil, fmt.Errorf("table: select: no column %q", f.Src)
		}
		if _, dup := seen[f.Name]; dup {
			return nil, fmt.Errorf("table: select: duplicate output column %q", f.Name)
		}
		seen[f.Name] = struct{}{}
		idx[i] = j
		cols[i] = Column{Name: f.Name, Type: t.cols[j].Type}
	}
	rows := make([][]any, len(t.rows))
	for r, src := range t.rows {
		row := make([]any, len(idx))
		for i, j := range idx {
			row[i] = src[j]
		}
		rows[r] = row
	}
	return t.derive(cols, rows), nil
}

// Filter keeps the rows for which keep returns true, preserving order.
func (t *Table) Filter(ctx context.Context, keep func(row []any) bool) (*Table, error) {
	parts, err := mapChunks(ctx, t, func(_ int, rows [][]any) ([][]any, error) {
		var out [][]any
		for _, r := range rows {
			if keep(r) {
				out = append(out, r)
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return t.derive(t.cols, concat(parts)), nil
}

// WithColumns appends cols to every row. derive receives the input row and
// returns exactly len(cols) values. It must be safe for concurrent use.
func (t *Table) WithColumns(ctx context.Context, cols []Column, derive func(row []any) []any) (*Table, error) {
	for _, c := range cols {
		if t.Index(c.Name) >= 0 {
			return nil, fmt.Errorf("table: with columns: column %q already exists", c.Name)
		}
	}
	width := len(t.cols) + len(cols)
	parts, err := mapChunks(ctx, t, func(_ int, rows [][]any) ([][]any, error) {
		out := make([][]any, len(rows))
		for i, r := range rows {
			add := derive(r)
			if len(add) != len(cols) {
				return nil, fmt.Errorf("table: with columns: derive returned %d values, want %d", len(add), len(cols))
			}
			row := make([]any, 0, width)
			row = append(row, r...)
			row = append(row, add...)
			out[i] = row
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	all := make([]Column, 0, width)
	all = append(append(all, t.cols...), cols...)
	return t.derive(all, concat(parts)), nil
}

// WithMonotonicID prepends a long column holding a run-unique id. Ids are
// increasing within a chunk and encode the chunk index in the upper bits, so
// they are unique without any coordination between workers but are not
// consecutive.
func (t *Table) WithMonotonicID(ctx context.Context, name string) (*Table, error) {
	if t.Index(name) >= 0 {
		return nil, fmt.Errorf("table: monotonic id: column %q already exists", name)
	}
	parts, err := mapChunks(ctx, t, func(chunk int, rows [][]any) ([][]any, error) {
		base := int64(chunk) << idOffsetBits
		out := make([][]any, len(rows))
		for i, r := range rows {
			row := make([]any, 0, len(r)+1)
			row = append(row, base|int64(i))
			out[i] = append(row, r...)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	cols := make([]Column, 0, len(t.cols)+1)
	cols = append(cols, Column{Name: name, Type: schema.Long})
	return t.derive(append(cols, t.cols...), concat(parts)), nil
}

// idOffsetBits is the width of the in-chunk offset of a monotonic id.
const idOffsetBits = 33

// mapChunks runs fn over consecutive chunks of t's rows on a bounded pool and
// returns the per-chunk results in chunk order.
func mapChunks(ctx context.Context, t *Table, fn func(chunk int, rows [][]any) ([][]any, error)) ([][][]any, error) {
	size := t.exec.chunkRows()
	n := (len(t.rows) + size - 1) / size
	parts := make([][][]any, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.exec.workers())
	for c := 0; c < n; c++ {
		c := c
		lo := c * size
		hi := min(lo+size, len(t.rows))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := fn(c, t.rows[lo:hi])
			if err != nil {
				return err
			}
			parts[c] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return parts, nil
}

func concat(parts [][][]any) [][]any {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([][]any, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
