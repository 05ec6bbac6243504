package main

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"csvingest/internal/config"
	"csvingest/internal/isolate"
	"csvingest/internal/logging"
	"csvingest/internal/metrics"
	"csvingest/internal/probe"
)

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	logLevel        string
	logFormat       string
	metricsBackend  string
	pushgatewayURL  string
	dogstatsdAddr   string
	job             string
	inferTimeout    time.Duration
	inferMaxTimeout time.Duration
	inProcess       bool

	log *logrus.Logger
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "csvingest",
		Short:         "Infer CSV schemas and stream typed records",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			g.log = logging.New(cmd.ErrOrStderr(), g.logLevel, g.logFormat)
			if cmd.Name() == workerCmdName {
				return nil
			}
			return setupMetrics(g)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == workerCmdName {
				return nil
			}
			if err := metrics.Flush(); err != nil {
				g.log.WithError(err).Warn("metrics: flush failed")
			}
			metrics.Reset()
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.logLevel, "log-level", "info", "log level: debug|info|warn|error")
	pf.StringVar(&g.logFormat, "log-format", "text", "log format: text|json")
	pf.StringVar(&g.metricsBackend, "metrics-backend", "none", "metrics backend: none|pushgateway|datadog")
	pf.StringVar(&g.pushgatewayURL, "pushgateway-url", "", "Pushgateway URL (env PUSHGATEWAY_URL, default http://localhost:9091)")
	pf.StringVar(&g.dogstatsdAddr, "dogstatsd-addr", "127.0.0.1:8125", "DogStatsD address")
	pf.StringVar(&g.job, "job", "csvingest", "job name used as the metrics job label")
	pf.DurationVar(&g.inferTimeout, "infer-timeout", probe.DefaultTimeout, "deadline of the first inference attempt")
	pf.DurationVar(&g.inferMaxTimeout, "infer-max-timeout", probe.DefaultMaxTimeout, "deadline of the inference retry")
	pf.BoolVar(&g.inProcess, "in-process", false, "run inference inside this process instead of a worker")

	root.AddCommand(
		newInferCmd(g),
		newStreamCmd(g),
		newSplitCmd(g),
		newValidateCmd(g),
		newWorkerCmd(g),
	)
	return root
}

// inferrer builds the schema inferrer. The worker is this binary started
// with the hidden worker subcommand.
func (g *globals) inferrer() (*probe.Inferrer, error) {
	in := &probe.Inferrer{
		Timeout:    g.inferTimeout,
		MaxTimeout: g.inferMaxTimeout,
		Logger:     g.log,
	}
	if g.inProcess {
		in.Runner = probe.LocalRunner(g.log)
		return in, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, errors.Wrap(err, "locate worker executable")
	}
	in.Runner = isolate.ProcessRunner{
		Path:   exe,
		Args:   []string{workerCmdName, "--log-level", g.logLevel, "--log-format", g.logFormat},
		Stderr: os.Stderr,
	}
	return in, nil
}

// formatFlags are the format options shared by infer, stream and split.
type formatFlags struct {
	path      string
	delimiter string
	encoding  string
	noInfer   bool
}

func (ff *formatFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&ff.path, "format", "", "format config file (.yaml, .yml or .json)")
	fs.StringVar(&ff.delimiter, "delimiter", "", "override the field delimiter")
	fs.StringVar(&ff.encoding, "encoding", "", "override the input encoding")
	fs.BoolVar(&ff.noInfer, "no-infer", false, "read every column as string")
}

// resolve loads the format file, applies overrides and rejects configs with
// validation errors. Warnings are logged.
func (ff *formatFlags) resolve(lg logrus.FieldLogger) (config.FormatConfig, error) {
	f := config.DefaultFormat()
	if ff.path != "" {
		var err error
		if f, err = config.LoadFormat(ff.path); err != nil {
			return f, err
		}
	}
	if ff.delimiter != "" {
		f.Delimiter = ff.delimiter
	}
	if ff.encoding != "" {
		f.Encoding = ff.encoding
	}
	if ff.noInfer {
		f.InferDatatypes = false
	}
	issues := config.ValidateFormat(f)
	for _, iss := range issues {
		if iss.Severity == config.SeverityWarning {
			lg.WithField("path", iss.Path).Warn(iss.Message)
		}
	}
	if config.HasErrors(issues) {
		for _, iss := range issues {
			if iss.Severity == config.SeverityError {
				return f, errors.Wrap(iss, "invalid format")
			}
		}
	}
	return f, nil
}
