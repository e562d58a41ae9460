package probe

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/pulsemap/pkg/logger"
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "probe_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	if err := logger.Init(logger.WithWriter(io.MultiWriter(os.Stdout, file))); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the probe.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Pulsemap Playback Probe
=======================

Drives a running pulsemap service through one full playback and checks
that dates only move forward, blends stay in [0, 1] and the run ends on
the last date fully blended in.

Usage:
  go run ./cmd/probe [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -rate int
        Tick interval in milliseconds to set before playing (default: keep)
  -poll duration
        Delay between playback polls (default 20ms)
  -stream
        Also watch /stream and check frame ordering
  -timeout duration
        HTTP request timeout (default 10s)
  -output string
        Output file for recorded samples (default: probe_samples_TIMESTAMP.json)
  -log string
        Log file for probe output (default: probe_log_TIMESTAMP.log)
  -verbose
        Log every poll
  -help
        Show this help message

Examples:
  # Fast run against a local service
  go run ./cmd/probe -rate 1

  # Watch the stream as well
  go run ./cmd/probe -rate 2 -stream -url http://localhost:8080
`)
}
