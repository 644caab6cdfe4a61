// Package common provides shared service metadata and logger setup.
package common

import (
	"log/slog"
	"os"
)

// PackageName identifies this service in logs and metrics.
const PackageName = "survey-key-recovery"

// Version is the service version, overridable at build time via
// -ldflags "-X github.com/checktick/survey-key-recovery/common.Version=...".
var Version = "dev"

// LoggingOpts configures the process-wide structured logger.
type LoggingOpts struct {
	// Debug lowers the log level to debug.
	Debug bool

	// JSON switches the handler to JSON output.
	JSON bool

	// Service is added as a "service" attribute on every record.
	Service string

	// Version is added as a "version" attribute on every record.
	Version string
}

// SetupLogger creates a slog.Logger writing to stderr per the options.
func SetupLogger(opts *LoggingOpts) *slog.Logger {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	log := slog.New(handler)
	if opts.Service != "" {
		log = log.With(slog.String("service", opts.Service))
	}
	if opts.Version != "" {
		log = log.With(slog.String("version", opts.Version))
	}
	return log
}
