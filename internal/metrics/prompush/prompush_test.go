package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparkify/internal/metrics"
)

func TestNewBackend(t *testing.T) {
	t.Parallel()

	_, err := NewBackend("job", "")
	assert.Error(t, err)

	b, err := NewBackend("", "http://pushgateway:9091")
	require.NoError(t, err)
	assert.Equal(t, "sparkify", b.jobName)
}

func TestIncCounter(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("sparkify", "http://example.com")
	require.NoError(t, err)

	b.IncCounter(metrics.StepTotal, 3, metrics.Labels{"step": "write_songs", "status": "success"})
	b.IncCounter(metrics.RecordsTotal, 5, metrics.Labels{"kind": "parse_errors"})
	b.IncCounter(metrics.BatchesTotal, 2, nil)
	b.IncCounter(metrics.TableRows, 71, metrics.Labels{"table": "songs"})
	b.IncCounter("unknown_metric", 10, metrics.Labels{"foo": "bar"})

	assert.Equal(t, 3.0, testutil.ToFloat64(b.stepCounter.WithLabelValues("write_songs", "success")))
	assert.Equal(t, 5.0, testutil.ToFloat64(b.recordCounter.WithLabelValues("parse_errors")))
	assert.Equal(t, 2.0, testutil.ToFloat64(b.batchCounter))
	assert.Equal(t, 71.0, testutil.ToFloat64(b.tableRows.WithLabelValues("songs")))
}

func TestNilCollectorsAreSafe(t *testing.T) {
	t.Parallel()

	b := &Backend{}
	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "s", "status": "ok"})
	b.IncCounter(metrics.RecordsTotal, 1, metrics.Labels{"kind": "k"})
	b.IncCounter(metrics.BatchesTotal, 1, nil)
	b.IncCounter(metrics.TableRows, 1, metrics.Labels{"table": "t"})
	b.ObserveHistogram(metrics.StepDuration, 1, nil)
}

func TestObserveHistogram(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("sparkify", "http://example.com")
	require.NoError(t, err)

	b.ObserveHistogram(metrics.StepDuration, 1.5, metrics.Labels{"step": "join", "status": "success"})
	b.ObserveHistogram("other", 9, metrics.Labels{"step": "join", "status": "success"})

	n, err := testutil.GatherAndCount(b.reg, metrics.StepDuration)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFlush(t *testing.T) {
	t.Parallel()

	type pushed struct {
		method, path string
		body         int
	}
	got := make(chan pushed, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- pushed{r.Method, r.URL.Path, len(body)}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	b, err := NewBackend("sparkify", srv.URL)
	require.NoError(t, err)
	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "read_logs", "status": "success"})

	require.NoError(t, b.Flush())
	p := <-got
	assert.Equal(t, http.MethodPut, p.method)
	assert.Equal(t, "/metrics/job/sparkify", p.path)
	assert.Positive(t, p.body)
}

func TestFlush_GatewayError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	b, err := NewBackend("sparkify", srv.URL)
	require.NoError(t, err)
	assert.Error(t, b.Flush())
}
