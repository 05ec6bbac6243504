// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// Ingestion runs are batch jobs, so instead of exposing a scrape endpoint the
// collected metrics are pushed to a Pushgateway on Flush. The "job" label
// becomes the Pushgateway grouping key; step and status stay as metric labels.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"csvingest/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stepCounter   *prometheus.CounterVec // csvingest_step_total
	stepDuration  *prometheus.SummaryVec // csvingest_step_duration_seconds
	recordCounter prometheus.Counter     // csvingest_records_total
	chunkCounter  prometheus.Counter     // csvingest_chunks_total
	chunkBytes    prometheus.Histogram   // csvingest_chunk_bytes
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name.
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "csvingest"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.StepTotal,
				Help: "Ingestion step executions, partitioned by step and status.",
			},
			[]string{"step", "status"},
		),
		stepDuration: prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Name:       metrics.StepDuration,
				Help:       "Duration of ingestion steps in seconds, partitioned by step and status.",
				Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
			},
			[]string{"step", "status"},
		),
		recordCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Records yielded to the pipeline.",
		}),
		chunkCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metrics.ChunksTotal,
			Help: "Chunks materialized by the splitter.",
		}),
		chunkBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metrics.ChunkBytes,
			Help:    "Size of materialized chunks in bytes.",
			Buckets: prometheus.ExponentialBuckets(1<<20, 2, 8),
		}),
	}

	for _, c := range []prometheus.Collector{b.stepCounter, b.stepDuration, b.recordCounter, b.chunkCounter, b.chunkBytes} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}
	return b, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.stepCounter == nil {
			return
		}
		b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)

	case metrics.RecordsTotal:
		if b.recordCounter == nil {
			return
		}
		b.recordCounter.Add(delta)

	case metrics.ChunksTotal:
		if b.chunkCounter == nil {
			return
		}
		b.chunkCounter.Add(delta)

	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	switch name {
	case metrics.StepDuration:
		if b.stepDuration == nil {
			return
		}
		b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
	case metrics.ChunkBytes:
		if b.chunkBytes == nil {
			return
		}
		b.chunkBytes.Observe(value)
	}
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
