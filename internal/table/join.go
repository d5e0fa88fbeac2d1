package table

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"github.com/zeebo/xxh3"
)

// On pairs a left and a right join column.
type On struct {
	Left  string
	Right string
}

// Join is an inner equi-join of t (left) with right on every pair in on.
//
// Equality is exact and type-exact: a string never equals a number, and
// strings compare byte for byte. A row with a null in any key column never
// matches. Every matching pair produces one output row, so duplicate keys
// multiply.
//
// The result has the left columns followed by the right columns. A right
// column whose name is already taken is renamed to rightAlias + "." + name.
func (t *Table) Join(ctx context.Context, right *Table, on []On, rightAlias string) (*Table, error) {
	if len(on) == 0 {
		return nil, fmt.Errorf("table: join: no key columns")
	}
	lk := make([]int, len(on))
	rk := make([]int, len(on))
	for i, p := range on {
		if lk[i] = t.Index(p.Left); lk[i] < 0 {
			return nil, fmt.Errorf("table: join: no left column %q", p.Left)
		}
		if rk[i] = right.Index(p.Right); rk[i] < 0 {
			return nil, fmt.Errorf("table: join: no right column %q", p.Right)
		}
	}

	cols := make([]Column, 0, len(t.cols)+len(right.cols))
	cols = append(cols, t.cols...)
	for _, c := range right.cols {
		if t.Index(c.Name) >= 0 {
			c.Name = rightAlias + "." + c.Name
		}
		cols = append(cols, c)
	}

	// Build side: the right table.
	idx := make(map[uint64][]buildEntry, right.Len())
	var buf []byte
	for r, row := range right.rows {
		var ok bool
		buf, ok = appendKey(buf[:0], row, rk)
		if !ok {
			continue
		}
		h := xxh3.Hash(buf)
		idx[h] = append(idx[h], buildEntry{row: r, key: append([]byte(nil), buf...)})
	}

	// Probe side: chunks of the left table.
	width := len(cols)
	parts, err := mapChunks(ctx, t, func(_ int, rows [][]any) ([][]any, error) {
		var (
			out [][]any
			key []byte
		)
		for _, l := range rows {
			var ok bool
			key, ok = appendKey(key[:0], l, lk)
			if !ok {
				continue
			}
			for _, e := range idx[xxh3.Hash(key)] {
				if !bytes.Equal(e.key, key) {
					continue
				}
				row := make([]any, 0, width)
				row = append(row, l...)
				out = append(out, append(row, right.rows[e.row]...))
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return t.derive(cols, concat(parts)), nil
}

type buildEntry struct {
	row int
	key []byte
}

// Key encoding tags. The tag makes equality type-exact.
const (
	tagString byte = iota + 1
	tagInt32
	tagInt64
	tagFloat64
	tagDecimal
	tagBool
)

// appendKey encodes the key columns of row. ok is false when any key is null
// or of an unsupported type.
func appendKey(b []byte, row []any, keys []int) ([]byte, bool) {
	for _, k := range keys {
		switch v := row[k].(type) {
		case nil:
			return b, false
		case string:
			b = append(b, tagString)
			b = binary.AppendUvarint(b, uint64(len(v)))
			b = append(b, v...)
		case int32:
			b = append(b, tagInt32)
			b = binary.BigEndian.AppendUint32(b, uint32(v))
		case int64:
			b = append(b, tagInt64)
			b = binary.BigEndian.AppendUint64(b, uint64(v))
		case float64:
			if math.IsNaN(v) {
				return b, false
			}
			if v == 0 {
				v = 0 // -0 == +0
			}
			b = append(b, tagFloat64)
			b = binary.BigEndian.AppendUint64(b, math.Float64bits(v))
		case decimal.Decimal:
			// String is canonical for equal values of any exponent.
			s := v.String()
			b = append(b, tagDecimal)
			b = binary.AppendUvarint(b, uint64(len(s)))
			b = append(b, s...)
		case bool:
			b = append(b, tagBool)
			if v {
				b = append(b, 1)
			} else {
				b = append(b, 0)
			}
		default:
			return b, false
		}
	}
	return b, true
}
