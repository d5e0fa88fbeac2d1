// Package file implements a local filesystem-backed data source.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"sparkify/internal/datasource"
)

// Local is a filesystem data source that opens files from the local disk.
type Local struct{ path string }

// NewLocal returns a new Local data source bound to the provided filesystem
// path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Open opens the configured path for reading. A canceled ctx is returned
// without touching the filesystem. Filesystem errors keep errors.Is
// semantics (e.g. os.ErrNotExist).
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	return f, nil
}

// Dir is a datasource.Store rooted at a local directory.
type Dir struct{ root string }

var _ datasource.Store = (*Dir)(nil)

// NewDir returns a store rooted at root.
func NewDir(root string) *Dir { return &Dir{root: root} }

// Glob matches pattern below the root and returns the matching regular files
// as full paths, sorted.
func (d *Dir) Glob(ctx context.Context, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(d.root); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	matches, err := filepath.Glob(filepath.Join(d.root, filepath.FromSlash(pattern)))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	out := matches[:0]
	for _, m := range matches {
		st, err := os.Stat(m)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", m, err)
		}
		if st.Mode().IsRegular() {
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Source returns a Local for name.
func (d *Dir) Source(name string) datasource.Source { return NewLocal(name) }
