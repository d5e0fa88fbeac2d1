package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sparkify/internal/metrics"
	jsonparser "sparkify/internal/parser/json"
	"sparkify/internal/schema"
	"sparkify/internal/table"
	"sparkify/internal/transformer"
)

// dataset returns the glob, record counter and step name of kind.
func (s *Session) dataset(kind schema.Kind) (glob, counter, step string, err error) {
	switch kind {
	case schema.Catalog:
		return s.cfg.Input.SongGlob, "catalog_read", "read_catalog", nil
	case schema.Log:
		return s.cfg.Input.LogGlob, "log_read", "read_logs", nil
	default:
		return "", "", "", fmt.Errorf("engine: no dataset for record kind %q", kind)
	}
}

// ReadRecords reads every file of the dataset for kind into a table typed by
// the registered schema. Files are read concurrently and concatenated in
// name order. A glob that matches nothing yields an empty table and a
// warning. A file that cannot be opened or read is skipped with a warning;
// only cancellation fails the read.
func (s *Session) ReadRecords(ctx context.Context, kind schema.Kind) (_ *table.Table, err error) {
	start := time.Now()
	glob, counter, step, err := s.dataset(kind)
	if err != nil {
		return nil, err
	}
	defer func() { metrics.RecordStep(s.cfg.Job, step, err, time.Since(start)) }()

	sch, err := schema.For(kind)
	if err != nil {
		return nil, err
	}
	plan := transformer.Compile(sch)

	names, err := s.input.Glob(ctx, glob)
	if err != nil {
		return nil, fmt.Errorf("%s: list %s: %w", step, glob, err)
	}
	if len(names) == 0 {
		s.log.Warn("engine: no input files", zap.String("kind", string(kind)), zap.String("glob", glob))
		empty, err := table.FromSchema(sch, nil)
		if err != nil {
			return nil, err
		}
		return empty.WithExec(s.exec), nil
	}

	parts := make([][][]any, len(names))
	bad := make([]int, len(names))
	skipped := make([]bool, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.cfg.Input.ReadWorkers, 1))
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			rows, n, err := s.readFile(gctx, name, plan)
			if err != nil {
				if cerr := gctx.Err(); cerr != nil {
					return cerr
				}
				s.log.Warn("engine: skipping unreadable file", zap.String("file", name), zap.Error(err))
				skipped[i] = true
				return nil
			}
			parts[i], bad[i] = rows, n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%s: %w", step, err)
	}

	var total, parseErrs, unreadable int
	for i := range parts {
		total += len(parts[i])
		parseErrs += bad[i]
		if skipped[i] {
			unreadable++
		}
	}
	rows := make([][]any, 0, total)
	for _, p := range parts {
		rows = append(rows, p...)
	}

	t, err := table.FromSchema(sch, rows)
	if err != nil {
		return nil, err
	}

	s.stats.files.Add(int64(len(names) - unreadable))
	s.stats.unreadable.Add(int64(unreadable))
	s.stats.records.Add(int64(total))
	s.stats.parseErrors.Add(int64(parseErrs))
	metrics.RecordRow(s.cfg.Job, counter, int64(total))
	metrics.RecordRow(s.cfg.Job, "parse_errors", int64(parseErrs))

	fields := []zap.Field{
		zap.String("kind", string(kind)),
		zap.Int("files", len(names)-unreadable),
		zap.Int("unreadable", unreadable),
		zap.Int("rows", total),
		zap.Int("parse_errors", parseErrs),
		zap.Duration("elapsed", time.Since(start).Truncate(time.Millisecond)),
	}
	if total == 0 {
		s.log.Warn("engine: dataset is empty", fields...)
	} else {
		s.log.Info("engine: dataset read", fields...)
	}
	return t.WithExec(s.exec), nil
}

func (s *Session) readFile(ctx context.Context, name string, plan *transformer.Plan) ([][]any, int, error) {
	rc, err := s.input.Source(name).Open(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", name, err)
	}
	defer rc.Close()

	rows, bad, err := jsonparser.DecodeAll(ctx, rc, plan, func(line int, err error) {
		s.log.Debug("engine: corrupt record", zap.String("file", name), zap.Int("line", line), zap.Error(err))
	})
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", name, err)
	}
	return rows, bad, nil
}
