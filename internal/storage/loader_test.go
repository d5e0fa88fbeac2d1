package storage

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func feed(n int) <-chan []any {
	in := make(chan []any, n)
	for i := 0; i < n; i++ {
		in <- []any{int64(i), "x"}
	}
	close(in)
	return in
}

// TestLoadBatches_Basic checks 7 rows in batches of 3 flush as 3+3+1 and the
// progress callback sees running totals.
func TestLoadBatches_Basic(t *testing.T) {
	t.Parallel()

	var calls int32
	copyFn := func(_ context.Context, cols []string, rows [][]any) (int64, error) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, []string{"c1", "c2"}, cols)
		return int64(len(rows)), nil
	}
	var seen []Progress
	total, err := LoadBatches(context.Background(), zap.NewNop(), []string{"c1", "c2"}, feed(7), 3, copyFn,
		func(p Progress) { seen = append(seen, p) })

	require.NoError(t, err)
	assert.Equal(t, int64(7), total)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []Progress{{1, 3, 3}, {2, 3, 6}, {3, 1, 7}}, seen)
}

func TestLoadBatches_Empty(t *testing.T) {
	t.Parallel()

	called := false
	total, err := LoadBatches(context.Background(), nil, []string{"c"}, feed(0), 10,
		func(context.Context, []string, [][]any) (int64, error) { called = true; return 0, nil }, nil)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.False(t, called)
}

// TestLoadBatches_ErrorPropagation ensures the first copy error stops the load.
func TestLoadBatches_ErrorPropagation(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("copy failed")
	var batches int
	copyFn := func(_ context.Context, _ []string, rows [][]any) (int64, error) {
		batches++
		if batches == 2 {
			return 0, wantErr
		}
		return int64(len(rows)), nil
	}

	total, err := LoadBatches(context.Background(), zap.NewNop(), []string{"c"}, feed(5), 2, copyFn, nil)
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, 2, batches)
}

func TestLoadBatches_BadArgs(t *testing.T) {
	t.Parallel()

	_, err := LoadBatches(context.Background(), nil, nil, feed(0), 0,
		func(context.Context, []string, [][]any) (int64, error) { return 0, nil }, nil)
	assert.Error(t, err)
	_, err = LoadBatches(context.Background(), nil, nil, feed(0), 1, nil, nil)
	assert.Error(t, err)
}

// TestLoadBatches_ContextCancel checks the loader exits on cancellation while
// waiting for input.
func TestLoadBatches_ContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan []any) // never written

	errCh := make(chan error, 1)
	go func() {
		_, err := LoadBatches(ctx, zap.NewNop(), []string{"c"}, in, 2,
			func(context.Context, []string, [][]any) (int64, error) { return 0, nil }, nil)
		errCh <- err
	}()
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("LoadBatches did not return after context cancel")
	}
}
