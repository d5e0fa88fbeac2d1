package sink

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"sparkify/internal/table"
)

// DefaultPartition is the directory value for null and empty partition values.
const DefaultPartition = "__HIVE_DEFAULT_PARTITION__"

// escapeByte reports whether c must be %XX-escaped in a partition path
// segment. Non-ASCII bytes are kept as is.
func escapeByte(c byte) bool {
	if c < 0x20 || c == 0x7F {
		return true
	}
	switch c {
	case '"', '#', '%', '\'', '*', '/', ':', '=', '?', '\\', '{', '[', ']', '^':
		return true
	}
	return false
}

// EscapePathName escapes s for use as a Hive partition name or value:
//
//	EscapePathName("a/b")  => "a%2Fb"
//	EscapePathName("x=1")  => "x%3D1"
func EscapePathName(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escapeByte(c) {
			fmt.Fprintf(&sb, "%%%02X", c)
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// partitionValue renders a column value as a directory value.
func partitionValue(v any) string {
	var s string
	switch t := v.(type) {
	case nil:
		return DefaultPartition
	case string:
		s = t
	case int32:
		s = strconv.FormatInt(int64(t), 10)
	case int64:
		s = strconv.FormatInt(t, 10)
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case decimal.Decimal:
		s = t.String()
	case bool:
		s = strconv.FormatBool(t)
	default:
		s = fmt.Sprint(t)
	}
	if s == "" {
		return DefaultPartition
	}
	return EscapePathName(s)
}

// partition is the rows of one leaf directory.
type partition struct {
	dir  string // "year=2018/month=11", "" when unpartitioned
	rows [][]any
}

// splitPartitions groups the rows of t by the values of partitionBy. The
// returned columns are the file columns: every column of t except the
// partition columns, in table order. Partitions are sorted by directory.
func splitPartitions(t *table.Table, partitionBy []string) ([]table.Column, []partition, error) {
	isPart := make(map[string]bool, len(partitionBy))
	keys := make([]int, len(partitionBy))
	for i, name := range partitionBy {
		idx := t.Index(name)
		if idx < 0 {
			return nil, nil, fmt.Errorf("sink: partition column %q not in table", name)
		}
		if isPart[name] {
			return nil, nil, fmt.Errorf("sink: partition column %q repeated", name)
		}
		isPart[name] = true
		keys[i] = idx
	}

	var (
		fileCols []table.Column
		keep     []int
	)
	for i, c := range t.Columns() {
		if !isPart[c.Name] {
			fileCols = append(fileCols, c)
			keep = append(keep, i)
		}
	}
	if len(fileCols) == 0 {
		return nil, nil, fmt.Errorf("sink: every column is a partition column")
	}

	byDir := make(map[string]*partition)
	var order []string
	var sb strings.Builder
	for i := 0; i < t.Len(); i++ {
		row := t.Row(i)
		sb.Reset()
		for j, k := range keys {
			if j > 0 {
				sb.WriteByte('/')
			}
			sb.WriteString(EscapePathName(partitionBy[j]))
			sb.WriteByte('=')
			sb.WriteString(partitionValue(row[k]))
		}
		dir := sb.String()
		p, ok := byDir[dir]
		if !ok {
			p = &partition{dir: dir}
			byDir[dir] = p
			order = append(order, dir)
		}
		out := make([]any, len(keep))
		for j, k := range keep {
			out[j] = row[k]
		}
		p.rows = append(p.rows, out)
	}

	sort.Strings(order)
	parts := make([]partition, 0, len(order))
	for _, dir := range order {
		parts = append(parts, *byDir[dir])
	}
	if len(partitionBy) == 0 && len(parts) == 0 {
		// An unpartitioned table always gets one (possibly empty) file.
		parts = append(parts, partition{})
	}
	return fileCols, parts, nil
}
