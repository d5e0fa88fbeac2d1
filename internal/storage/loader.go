package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// CopyFn abstracts a backend's bulk insert (Postgres COPY, SQLite
// transactional INSERT). It inserts rows aligned to columns and returns the
// number of rows inserted.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// Progress is reported after every successful flush.
type Progress struct {
	Batches  int64
	Inserted int64
	Total    int64
}

// LoadBatches drains rows from in, groups them into batches of batchSize and
// calls copyFn per non-empty batch. It returns the total reported by copyFn
// and the first error. A canceled ctx returns (total, ctx.Err()).
//
// Each successful flush logs a progress line with rows/sec since the previous
// flush; onFlush, when non-nil, is called with the same numbers.
func LoadBatches(
	ctx context.Context,
	log *zap.Logger,
	columns []string,
	in <-chan []any,
	batchSize int,
	copyFn CopyFn,
	onFlush func(Progress),
) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("storage: batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("storage: copyFn must not be nil")
	}
	if log == nil {
		log = zap.NewNop()
	}

	var (
		total     int64
		batches   int64
		batch     = make([][]any, 0, batchSize)
		start     = time.Now()
		lastFlush = start
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := copyFn(ctx, columns, batch)
		total += n
		batch = batch[:0]
		if err != nil {
			log.Error("loader: copy failed", zap.Int64("inserted", n), zap.Int64("total", total), zap.Error(err))
			return err
		}

		batches++
		now := time.Now()
		since := now.Sub(lastFlush)
		rps := 0.0
		if since > 0 {
			rps = float64(n) / since.Seconds()
		}
		log.Debug("loader: batch flushed",
			zap.Int64("batch", batches),
			zap.Int64("inserted", n),
			zap.Int64("total", total),
			zap.Float64("rps", rps),
			zap.Duration("elapsed", now.Sub(start).Truncate(time.Millisecond)),
		)
		lastFlush = now
		if onFlush != nil {
			onFlush(Progress{Batches: batches, Inserted: n, Total: total})
		}
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		case row, ok := <-in:
			if !ok {
				if err := flush(); err != nil {
					return total, err
				}
				return total, nil
			}
			batch = append(batch, row)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
}
