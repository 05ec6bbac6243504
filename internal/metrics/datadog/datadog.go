// Package datadog sends csvingest metrics to a DogStatsD agent.
//
// Counters are sent as Count and histograms as Histogram. Names lose the
// "csvingest_" prefix in favor of a "csvingest." namespace, and labels become
// sorted "key:value" tags.
package datadog

import (
	"sort"
	"strings"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/pkg/errors"

	"csvingest/internal/metrics"
)

// Config holds Datadog backend configuration.
type Config struct {
	// Addr is the DogStatsD address, e.g. "127.0.0.1:8125" or "unix:///path/to/socket".
	Addr string
	// Namespace is prepended to every metric name.
	Namespace string
	// GlobalTags are attached to every metric, e.g. "service:csvingest".
	GlobalTags []string
}

// client is the part of *statsd.Client the backend uses.
type client interface {
	Count(name string, value int64, tags []string, rate float64) error
	Histogram(name string, value float64, tags []string, rate float64) error
	Close() error
}

// Backend implements metrics.Backend on top of a DogStatsD client.
type Backend struct {
	client client
}

// NewBackend dials cfg.Addr. Addr is required.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, errors.New("datadog: Addr is required")
	}
	opts := []statsd.Option{}
	if cfg.Namespace != "" {
		opts = append(opts, statsd.WithNamespace(cfg.Namespace))
	}
	if len(cfg.GlobalTags) > 0 {
		opts = append(opts, statsd.WithTags(cfg.GlobalTags))
	}
	c, err := statsd.New(cfg.Addr, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "datadog: create client")
	}
	return &Backend{client: c}, nil
}

// IncCounter sends delta as a Count. Fractional deltas are truncated.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	_ = b.client.Count(MetricName(name), int64(delta), tags(labels), 1)
}

// ObserveHistogram sends value as a Histogram sample.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	_ = b.client.Histogram(MetricName(name), value, tags(labels), 1)
}

// Flush closes the client, which sends anything still buffered. The backend
// must not be used afterwards.
func (b *Backend) Flush() error {
	if b.client == nil {
		return nil
	}
	return errors.Wrap(b.client.Close(), "datadog: flush")
}

// MetricName maps "csvingest_step_total" to "csvingest.step_total". Other
// names are returned unchanged.
func MetricName(name string) string {
	const prefix = "csvingest_"
	if rest, ok := strings.CutPrefix(name, prefix); ok && rest != "" {
		return "csvingest." + rest
	}
	return name
}

// tagValue replaces the DogStatsD separators a file path may contain.
var tagValue = strings.NewReplacer(",", "_", "|", "_", "#", "_", "\n", "_")

func tags(lbls metrics.Labels) []string {
	if len(lbls) == 0 {
		return nil
	}
	out := make([]string, 0, len(lbls))
	for k, v := range lbls {
		out = append(out, k+":"+tagValue.Replace(v))
	}
	sort.Strings(out)
	return out
}
