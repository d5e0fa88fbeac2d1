package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sparkify/internal/metrics"
	"sparkify/internal/storage"
	"sparkify/internal/table"
)

// WarehouseOptions configure a Warehouse sink.
type WarehouseOptions struct {
	Job       string
	Kind      string // registered storage kind: postgres | sqlite | mssql | mysql
	DSN       string
	Schema    string // optional qualifier for table names
	BatchSize int
}

// Warehouse mirrors tables into a SQL database. Each write drops and
// recreates the destination table, then bulk-loads every row in batches.
// Partition columns are ordinary columns here.
type Warehouse struct {
	opts WarehouseOptions
	log  *zap.Logger
	open func(ctx context.Context, cfg storage.Config) (storage.Repository, error)
}

// NewWarehouse builds a Warehouse sink on the storage factory. The backend
// for opts.Kind must be registered (see internal/storage/all).
func NewWarehouse(opts WarehouseOptions, log *zap.Logger) *Warehouse {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 5000
	}
	return &Warehouse{opts: opts, log: log, open: storage.New}
}

func (w *Warehouse) fqn(name string) string {
	if w.opts.Schema == "" {
		return name
	}
	return w.opts.Schema + "." + name
}

// Write implements Sink.
func (w *Warehouse) Write(ctx context.Context, t *table.Table, name string, _ ...string) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordStep(w.opts.Job, "load_"+name, err, time.Since(start))
	}()

	fqn := w.fqn(name)
	cols := t.Names()
	repo, err := w.open(ctx, storage.Config{Kind: w.opts.Kind, DSN: w.opts.DSN, Table: fqn, Columns: cols})
	if err != nil {
		return fmt.Errorf("warehouse: open %s: %w", fqn, err)
	}
	defer repo.Close()

	if err := storage.ReplaceTable(ctx, w.opts.Kind, repo, fqn, t.Columns()); err != nil {
		return fmt.Errorf("warehouse: replace %s: %w", fqn, err)
	}

	in := make(chan []any, w.opts.BatchSize)
	var inserted int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(in)
		for i := 0; i < t.Len(); i++ {
			select {
			case in <- sqlRow(t.Row(i)):
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	g.Go(func() error {
		n, err := storage.LoadBatches(gctx, w.log.With(zap.String("table", fqn)), cols, in, w.opts.BatchSize,
			repo.CopyFrom, func(storage.Progress) { metrics.RecordBatches(w.opts.Job, 1) })
		inserted = n
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("warehouse: load %s: %w", fqn, err)
	}

	metrics.RecordRow(w.opts.Job, "inserted", inserted)
	w.log.Info("warehouse: table loaded",
		zap.String("table", fqn),
		zap.Int64("rows", inserted),
		zap.Duration("elapsed", time.Since(start).Truncate(time.Millisecond)),
	)
	return nil
}

// sqlRow converts a row to driver values. Whole decimals become int64 and
// fractional ones float64; everything else passes through.
func sqlRow(row []any) []any {
	out := make([]any, len(row))
	for i, v := range row {
		if d, ok := v.(decimal.Decimal); ok {
			if d.Exponent() >= 0 {
				out[i] = d.IntPart()
			} else {
				out[i] = d.InexactFloat64()
			}
			continue
		}
		out[i] = v
	}
	return out
}
