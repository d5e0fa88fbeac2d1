package sink

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"sparkify/internal/table"
)

// Captured is one table held by a Memory sink.
type Captured struct {
	Table       *table.Table
	PartitionBy []string
}

// Memory keeps written tables in memory. It backs dry runs and tests. A
// second write of the same name replaces the first.
type Memory struct {
	log *zap.Logger

	mu     sync.Mutex
	tables map[string]Captured
}

// NewMemory returns an empty Memory sink. log may be nil.
func NewMemory(log *zap.Logger) *Memory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Memory{log: log, tables: make(map[string]Captured)}
}

// Write implements Sink.
func (m *Memory) Write(ctx context.Context, t *table.Table, name string, partitionBy ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.tables[name] = Captured{Table: t, PartitionBy: append([]string(nil), partitionBy...)}
	m.mu.Unlock()
	m.log.Info("sink: table captured (dry run)",
		zap.String("table", name),
		zap.Int("rows", t.Len()),
		zap.Strings("partition_by", partitionBy),
	)
	return nil
}

// Get returns the table last written under name.
func (m *Memory) Get(name string) (Captured, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.tables[name]
	return c, ok
}

// Names lists the captured tables, sorted.
func (m *Memory) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.tables))
	for k := range m.tables {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
