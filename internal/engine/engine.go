// Package engine is the execution context of one job run. A Session owns the
// input store, the output sinks, the time zone and the data-parallel
// executor, and hands them to the pipeline steps. It is opened once per run,
// read-only for the steps, and closed at the end.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go/aws/session"
	awss3 "github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"sparkify/internal/calendar"
	"sparkify/internal/config"
	"sparkify/internal/datasource"
	"sparkify/internal/datasource/file"
	s3ds "sparkify/internal/datasource/s3"
	"sparkify/internal/sink"
	"sparkify/internal/table"
)

// Options override parts of a Session. Zero values mean "build from config".
type Options struct {
	RunID string
	Input datasource.Store
	Sink  sink.Sink
}

// Session is the shared, read-only context of a run.
type Session struct {
	cfg   *config.Config
	log   *zap.Logger
	runID string
	input datasource.Store
	sink  sink.Sink
	loc   *time.Location
	exec  *table.Exec

	closers []func() error
	stats   counters
}

// counters are updated by concurrent readers.
type counters struct {
	files       atomic.Int64
	unreadable  atomic.Int64
	records     atomic.Int64
	parseErrors atomic.Int64
	tables      atomic.Int64
	rowsWritten atomic.Int64
}

// Stats is a snapshot of the run counters.
type Stats struct {
	Files       int64
	Unreadable  int64
	Records     int64
	ParseErrors int64
	Tables      int64
	RowsWritten int64
}

// Open builds a Session from cfg. Stores and sinks not supplied in opts are
// created from the config: local or S3 input, a Parquet lake (or an
// in-memory sink for dry runs), plus the warehouse mirror when configured.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger, opts Options) (*Session, error) {
	if cfg == nil {
		return nil, errors.New("engine: config is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	loc, err := calendar.LoadLocation(cfg.Runtime.Timezone)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	s := &Session{
		cfg:   cfg,
		log:   log,
		runID: opts.RunID,
		input: opts.Input,
		sink:  opts.Sink,
		loc:   loc,
		exec:  &table.Exec{Workers: cfg.Runtime.Workers, ChunkRows: cfg.Runtime.ChunkRows},
	}
	if s.runID == "" {
		s.runID = uuid.NewString()
	}

	var sess *session.Session
	awsSession := func() (*session.Session, error) {
		if sess != nil {
			return sess, nil
		}
		var err error
		sess, err = s3ds.NewSession(s3ds.Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			Endpoint:        cfg.AWS.Endpoint,
		})
		return sess, err
	}

	if s.input == nil {
		if datasource.IsS3(cfg.Input.Root) {
			as, err := awsSession()
			if err != nil {
				return nil, fmt.Errorf("engine: %w", err)
			}
			b, err := s3ds.NewBucket(awss3.New(as), cfg.Input.Root)
			if err != nil {
				return nil, fmt.Errorf("engine: input: %w", err)
			}
			s.input = b
		} else {
			s.input = file.NewDir(cfg.Input.Root)
		}
	}

	if s.sink == nil {
		out, err := s.buildSink(awsSession)
		if err != nil {
			return nil, err
		}
		s.sink = out
	}

	log.Info("engine: session opened",
		zap.String("run_id", s.runID),
		zap.String("input", cfg.Input.Root),
		zap.String("output", cfg.Output.Root),
		zap.String("timezone", loc.String()),
		zap.Bool("dry_run", cfg.Sink.DryRun),
		zap.String("warehouse", cfg.Warehouse.Kind),
	)
	return s, nil
}

func (s *Session) buildSink(awsSession func() (*session.Session, error)) (sink.Sink, error) {
	cfg := s.cfg
	if cfg.Sink.DryRun {
		return sink.NewMemory(s.log), nil
	}

	var pub sink.Publisher = sink.LocalPublisher{}
	if datasource.IsS3(cfg.Output.Root) {
		as, err := awsSession()
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		pub = sink.NewS3Publisher(awss3.New(as), s3manager.NewUploader(as), s.log)
	}
	lake, err := sink.NewLake(sink.LakeOptions{
		Job:            cfg.Job,
		RunID:          s.runID,
		Root:           cfg.Output.Root,
		Suffix:         cfg.Output.Suffix,
		Compression:    cfg.Sink.Compression,
		RowGroupMB:     cfg.Sink.RowGroupMB,
		MaxRowsPerFile: cfg.Sink.MaxRowsPerFile,
		StagingDir:     cfg.Sink.StagingDir,
		Workers:        s.exec.Workers,
	}, pub, s.log)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	s.closers = append(s.closers, lake.Close)

	if cfg.Warehouse.Kind == "" {
		return lake, nil
	}
	wh := sink.NewWarehouse(sink.WarehouseOptions{
		Job:       cfg.Job,
		Kind:      cfg.Warehouse.Kind,
		DSN:       cfg.Warehouse.DSN,
		Schema:    cfg.Warehouse.Schema,
		BatchSize: cfg.Warehouse.BatchSize,
	}, s.log)
	return sink.Multi{lake, wh}, nil
}

// Job is the job name used as a metrics label.
func (s *Session) Job() string { return s.cfg.Job }

// RunID identifies this run in file names and logs.
func (s *Session) RunID() string { return s.runID }

// Log returns the session logger.
func (s *Session) Log() *zap.Logger { return s.log }

// Location is the time zone used for calendar fields.
func (s *Session) Location() *time.Location { return s.loc }

// Exec is the executor attached to every table the session reads.
func (s *Session) Exec() *table.Exec { return s.exec }

// Sink is where tables are written.
func (s *Session) Sink() sink.Sink { return s.sink }

// Write persists t under name through the session sink.
func (s *Session) Write(ctx context.Context, t *table.Table, name string, partitionBy ...string) error {
	if err := s.sink.Write(ctx, t, name, partitionBy...); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	s.stats.tables.Add(1)
	s.stats.rowsWritten.Add(int64(t.Len()))
	return nil
}

// Stats returns a snapshot of the run counters.
func (s *Session) Stats() Stats {
	return Stats{
		Files:       s.stats.files.Load(),
		Unreadable:  s.stats.unreadable.Load(),
		Records:     s.stats.records.Load(),
		ParseErrors: s.stats.parseErrors.Load(),
		Tables:      s.stats.tables.Load(),
		RowsWritten: s.stats.rowsWritten.Load(),
	}
}

// Close releases session resources. It is safe to call more than once.
func (s *Session) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	s.closers = nil
	return errors.Join(errs...)
}
