// Package logging configures logrus loggers for the CLI and the worker.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Setup configures the standard logrus logger to write to stderr.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
//
// Stdout is left alone: the CLI prints results there and the worker speaks
// its protocol on it.
func Setup(level, format string) *logrus.Logger {
	lg := logrus.StandardLogger()
	configure(lg, os.Stderr, level, format)
	return lg
}

// New returns a fresh logger writing to out.
func New(out io.Writer, level, format string) *logrus.Logger {
	lg := logrus.New()
	configure(lg, out, level, format)
	return lg
}

func configure(lg *logrus.Logger, out io.Writer, level, format string) {
	lg.SetOutput(out)
	lg.SetLevel(parseLevel(level))
	if strings.ToLower(format) == "json" {
		lg.SetFormatter(&logrus.JSONFormatter{})
	} else {
		lg.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	}
}

// parseLevel converts a string log level to a logrus.Level.
func parseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
