package sink

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sparkify/internal/datasource"
	"sparkify/internal/metrics"
	"sparkify/internal/table"
)

// SuccessMarker is written in every table root after all data files.
const SuccessMarker = "_SUCCESS"

// LakeOptions configure a Lake.
type LakeOptions struct {
	Job    string // metrics label
	RunID  string // embedded in file names
	Root   string // local directory or s3:// uri
	Suffix string // appended to table names, e.g. ".parquet"

	Compression    string
	RowGroupMB     int
	MaxRowsPerFile int // <=0 means one file per partition
	StagingDir     string
	Workers        int // concurrent file writers; <=0 means 1
}

// Lake writes tables as Hive-partitioned Parquet under a root.
type Lake struct {
	opts  LakeOptions
	codec Codec
	pub   Publisher
	log   *zap.Logger
}

// NewLake builds a Lake that publishes through pub.
func NewLake(opts LakeOptions, pub Publisher, log *zap.Logger) (*Lake, error) {
	codec, err := ParseCodec(opts.Compression)
	if err != nil {
		return nil, err
	}
	if pub == nil {
		return nil, fmt.Errorf("sink: publisher is required")
	}
	if opts.RunID == "" {
		return nil, fmt.Errorf("sink: run id is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Lake{opts: opts, codec: codec, pub: pub, log: log}, nil
}

// Dest returns the destination of table name.
func (l *Lake) Dest(name string) string {
	leaf := name + l.opts.Suffix
	if datasource.IsS3(l.opts.Root) {
		return strings.TrimRight(l.opts.Root, "/") + "/" + leaf
	}
	return filepath.Join(l.opts.Root, leaf)
}

func (l *Lake) stagingRoot() string {
	if l.opts.StagingDir != "" {
		return l.opts.StagingDir
	}
	if datasource.IsS3(l.opts.Root) {
		return os.TempDir()
	}
	return filepath.Join(l.opts.Root, "_temporary")
}

// Close removes the default staging directory when no table is still using
// it. A configured staging dir is left alone.
func (l *Lake) Close() error {
	if l.opts.StagingDir != "" || datasource.IsS3(l.opts.Root) {
		return nil
	}
	root := l.stagingRoot()
	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) || len(entries) > 0 {
		return nil
	}
	if err != nil {
		return fmt.Errorf("sink: staging dir: %w", err)
	}
	if err := os.Remove(root); err != nil {
		return fmt.Errorf("sink: remove staging dir: %w", err)
	}
	return nil
}

// fileJob is one Parquet file to write.
type fileJob struct {
	path string
	rows [][]any
}

// Write implements Sink. The table is staged completely before the
// destination is touched.
func (l *Lake) Write(ctx context.Context, t *table.Table, name string, partitionBy ...string) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordStep(l.opts.Job, "write_"+name, err, time.Since(start))
	}()

	cols, parts, err := splitPartitions(t, partitionBy)
	if err != nil {
		return fmt.Errorf("sink: %s: %w", name, err)
	}

	stagingRoot := l.stagingRoot()
	if err := os.MkdirAll(stagingRoot, 0o755); err != nil {
		return fmt.Errorf("sink: staging dir: %w", err)
	}
	stage, err := os.MkdirTemp(stagingRoot, name+"-"+l.opts.RunID+"-")
	if err != nil {
		return fmt.Errorf("sink: staging dir: %w", err)
	}
	defer os.RemoveAll(stage)
	tableDir := filepath.Join(stage, name)

	jobs, err := l.plan(tableDir, parts)
	if err != nil {
		return fmt.Errorf("sink: %s: %w", name, err)
	}

	fo := fileOptions{codec: l.codec, rowGroupSize: int64(l.opts.RowGroupMB) * 1024 * 1024}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(l.opts.Workers, 1))
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return writeParquet(j.path, cols, j.rows, fo)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("sink: %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(tableDir, SuccessMarker), nil, 0o644); err != nil {
		return fmt.Errorf("sink: %s: %w", name, err)
	}

	dest := l.Dest(name)
	if err := l.pub.Publish(ctx, tableDir, dest); err != nil {
		return err
	}

	metrics.RecordTable(l.opts.Job, name, int64(t.Len()))
	partitions := len(parts)
	if len(partitionBy) == 0 {
		partitions = 0
	}
	l.log.Info("sink: table written",
		zap.String("table", name),
		zap.String("dest", dest),
		zap.Int("rows", t.Len()),
		zap.Int("partitions", partitions),
		zap.Int("files", len(jobs)),
		zap.Duration("elapsed", time.Since(start).Truncate(time.Millisecond)),
	)
	return nil
}

// plan creates the partition directories and assigns rows to files. Part
// numbers run across the whole table.
func (l *Lake) plan(tableDir string, parts []partition) ([]fileJob, error) {
	if err := os.MkdirAll(tableDir, 0o755); err != nil {
		return nil, err
	}
	var jobs []fileJob
	for _, p := range parts {
		dir := tableDir
		if p.dir != "" {
			dir = filepath.Join(tableDir, filepath.FromSlash(p.dir))
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		for _, chunk := range splitRows(p.rows, l.opts.MaxRowsPerFile) {
			jobs = append(jobs, fileJob{
				path: filepath.Join(dir, l.codec.fileName(len(jobs), l.opts.RunID)),
				rows: chunk,
			})
		}
	}
	return jobs, nil
}

// splitRows cuts rows into chunks of at most n rows. It always returns at
// least one chunk.
func splitRows(rows [][]any, n int) [][][]any {
	if n <= 0 || len(rows) <= n {
		return [][][]any{rows}
	}
	out := make([][][]any, 0, (len(rows)+n-1)/n)
	for start := 0; start < len(rows); start += n {
		out = append(out, rows[start:min(start+n, len(rows))])
	}
	return out
}
