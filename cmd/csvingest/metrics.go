package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"csvingest/internal/metrics"
	"csvingest/internal/metrics/datadog"
	"csvingest/internal/metrics/prompush"
)

// setupMetrics installs the backend chosen by --metrics-backend. A backend
// that fails to initialise leaves metrics disabled.
func setupMetrics(g *globals) error {
	switch g.metricsBackend {
	case "pushgateway":
		// Pushgateway URL: flag, then env, then default.
		gwURL := g.pushgatewayURL
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}
		b, err := prompush.NewBackend(g.job, gwURL)
		if err != nil {
			g.log.WithError(err).Warn("metrics: failed to init prom push backend; using nop")
			return nil
		}
		g.log.WithFields(logrus.Fields{"url": gwURL, "job": g.job}).Debug("metrics: pushgateway backend")
		metrics.SetBackend(b)

	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       g.dogstatsdAddr,
			GlobalTags: []string{"service:csvingest"},
		})
		if err != nil {
			g.log.WithError(err).Warn("metrics: failed to init datadog backend; using nop")
			return nil
		}
		g.log.WithField("addr", g.dogstatsdAddr).Debug("metrics: datadog backend")
		metrics.SetBackend(b)

	case "", "none":
		// metrics disabled; nop backend remains

	default:
		return errors.Errorf("unknown metrics backend %q", g.metricsBackend)
	}
	return nil
}
