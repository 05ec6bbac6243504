// Package metrics records operational metrics from the ingestion core behind
// a narrow, backend-agnostic interface.
//
// A process-wide backend defaults to a no-op, so instrumented code never has
// to check whether metrics are configured. Concrete systems live in
// subpackages (prompush for a Prometheus Pushgateway, datadog for DogStatsD)
// and are installed once at startup with SetBackend.
//
// Steps are the phases of one file's ingestion: "infer", "chunk" and
// "stream".
package metrics

import (
	"strconv"
	"sync"
	"time"
)

// Metric names emitted by this package.
const (
	StepTotal      = "csvingest_step_total"
	StepDuration   = "csvingest_step_duration_seconds"
	RecordsTotal   = "csvingest_records_total"
	ChunksTotal    = "csvingest_chunks_total"
	ChunkBytes     = "csvingest_chunk_bytes"
	StatusSuccess  = "success"
	StatusFailure  = "failure"
	StatusTimeout  = "timeout"
	defaultJobName = "csvingest"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency or size style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

// Reset restores the no-op backend.
func Reset() {
	mu.Lock()
	backend = nopBackend{}
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordStep counts one execution of step and observes its duration. status
// is usually derived with StatusOf.
func RecordStep(job, step, status string, d time.Duration) {
	if job == "" {
		job = defaultJobName
	}
	lbls := Labels{"job": job, "step": step, "status": status}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// StatusOf maps an outcome to a status label. timedOut distinguishes
// inference timeouts from other failures.
func StatusOf(err error, timedOut bool) string {
	switch {
	case err == nil:
		return StatusSuccess
	case timedOut:
		return StatusTimeout
	}
	return StatusFailure
}

// RecordRecords counts records yielded from file.
func RecordRecords(job, file string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RecordsTotal, float64(delta), fileLabels(job, file))
}

// RecordChunk counts chunk index of file as materialized and observes its
// size.
func RecordChunk(job, file string, index int, size int64) {
	lbls := fileLabels(job, file)
	lbls["chunk"] = strconv.Itoa(index)
	b := current()
	b.IncCounter(ChunksTotal, 1, lbls)
	b.ObserveHistogram(ChunkBytes, float64(size), lbls)
}

func fileLabels(job, file string) Labels {
	if job == "" {
		job = defaultJobName
	}
	lbls := Labels{"job": job}
	if file != "" {
		lbls["file"] = file
	}
	return lbls
}
