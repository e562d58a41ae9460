package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/okian/pulsemap/internal/probe"
)

// Default configuration constants.
const (
	defaultProbeTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", probe.DefaultBaseURL, "Base URL of the service")
		rate       = flag.Int("rate", 0, "Tick interval in milliseconds to set before playing (0 keeps the server's)")
		poll       = flag.Duration("poll", probe.DefaultPollInterval, "Delay between playback polls")
		stream     = flag.Bool("stream", false, "Also watch /stream and check frame ordering")
		timeout    = flag.Duration("timeout", probe.DefaultTimeout, "HTTP request timeout")
		outputFile = flag.String("output", "", "Output file for recorded samples (default: probe_samples_TIMESTAMP.json)")
		logFile    = flag.String("log", "", "Log file for probe output (default: probe_log_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Log every poll")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		probe.ShowHelp()
		return
	}

	if err := probe.SetupLogging(*logFile); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Failed to setup logging:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultProbeTimeout)
	defer cancel()

	config := &probe.Config{
		BaseURL:      *baseURL,
		Timeout:      *timeout,
		PollInterval: *poll,
		RateMS:       *rate,
		Stream:       *stream,
		OutputFile:   *outputFile,
		LogFile:      *logFile,
		Verbose:      *verbose,
	}

	if _, err := probe.Run(ctx, config); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Probe failed:", err)
		os.Exit(1)
	}
}
