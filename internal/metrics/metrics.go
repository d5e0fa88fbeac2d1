// Package metrics records operational metrics for the lake job behind a
// small pluggable Backend. The default backend is a no-op, so every Record*
// call is safe whether or not a real backend is installed. Concrete backends
// live in subpackages (prompush, datadog).
package metrics

import "time"

// Metric names shared by all backends.
const (
	StepTotal    = "etl_step_total"
	StepDuration = "etl_step_duration_seconds"
	RecordsTotal = "etl_records_total"
	BatchesTotal = "etl_batches_total"
	TableRows    = "etl_table_rows"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep counts one execution of a job step (read_catalog, write_songs,
// ...) and observes its duration, labelled by success or failure.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "step": step, "status": status}
	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRow increments a record-level counter. Kinds used by the job:
// "catalog_read", "log_read", "parse_errors", "next_song", "joined",
// "inserted".
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RecordsTotal, float64(delta), Labels{"job": job, "kind": kind})
}

// RecordBatches counts warehouse load batches.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(BatchesTotal, float64(delta), Labels{"job": job})
}

// RecordTable counts the rows written for one output table. Empty tables are
// recorded too, with a zero delta, so the series exists for every table.
func RecordTable(job, table string, rows int64) {
	if rows < 0 {
		return
	}
	backend.IncCounter(TableRows, float64(rows), Labels{"job": job, "table": table})
}
