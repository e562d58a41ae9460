// Package probe drives a running pulsemap service through one playback and
// verifies what it observes over HTTP and the frame stream.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/okian/pulsemap/internal/domain/frame"
	"github.com/okian/pulsemap/internal/domain/playback"
	"github.com/okian/pulsemap/pkg/logger"
)

// Run executes the complete probe.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get().Named("probe")

	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	log.Info(ctx, "starting pulsemap probe",
		logger.String("baseURL", config.BaseURL),
		logger.Duration("poll", config.PollInterval),
		logger.Int("rateMs", config.RateMS),
		logger.Bool("stream", config.Stream),
		logger.Bool("verbose", config.Verbose))

	client := newHTTPClient(config.BaseURL, config.Timeout)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Learn the date range
	var dates DatesResponse
	if err := client.Get(ctx, "/dates", &dates); err != nil {
		return stats, fmt.Errorf("dates retrieval failed: %w", err)
	}
	log.Info(ctx, "date range",
		logger.String("first", dates.First.String()),
		logger.String("last", dates.Last.String()),
		logger.Int("count", dates.Count))

	// Step 3: Prepare playback
	if config.RateMS > 0 {
		if err := client.Post(ctx, "/playback/rate?ms="+strconv.Itoa(config.RateMS), nil); err != nil {
			return stats, fmt.Errorf("set rate failed: %w", err)
		}
	}
	if err := client.Post(ctx, "/playback/reset", nil); err != nil {
		return stats, fmt.Errorf("reset failed: %w", err)
	}
	var baseline frame.Frame
	if err := client.Get(ctx, "/frame", &baseline); err != nil {
		return stats, fmt.Errorf("baseline frame failed: %w", err)
	}

	// Step 4: Watch the stream
	var streamDone chan streamResult
	if config.Stream {
		ws, err := dialStream(config.BaseURL)
		if err != nil {
			return stats, err
		}
		streamDone = make(chan streamResult, 1)
		go func() { streamDone <- watchStream(ctx, ws, baseline.Version, dates.Last) }()
	}

	// Step 5: Play and poll until the run completes
	samples, err := playAndWatch(ctx, client, config, log)
	stats.Polls = len(samples)
	if err != nil {
		return stats, fmt.Errorf("playback failed: %w", err)
	}

	// Step 6: Verify results
	if stats.DistinctDates, err = verifySamples(samples, dates); err != nil {
		return stats, err
	}
	if stats.FramesChecked, err = checkFrames(ctx, client, dates); err != nil {
		return stats, err
	}
	if streamDone != nil {
		res := <-streamDone
		if res.err != nil {
			return stats, res.err
		}
		stats.StreamFrames = len(res.frames)
		if stats.StreamOutOrder, err = verifyStream(res.frames); err != nil {
			return stats, err
		}
	}

	// Step 7: Save samples to file
	if err := saveSamplesToFile(ctx, config, samples); err != nil {
		log.Warn(ctx, "failed to save samples to file", logger.Error(err))
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats, dates)

	log.Info(ctx, "probe completed successfully")
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	if err := client.Expect(ctx, http.MethodGet, "/healthz", http.StatusOK); err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	return nil
}

// playAndWatch starts playback and polls until it stops.
func playAndWatch(ctx context.Context, client *HTTPClient, config *Config, log logger.Logger) ([]Sample, error) {
	var first playback.Snapshot
	if err := client.Post(ctx, "/playback/play", &first); err != nil {
		return nil, err
	}
	samples := []Sample{{At: time.Now(), Snapshot: first}}

	ticker := time.NewTicker(config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return samples, ctx.Err()
		case <-ticker.C:
		}

		var snap playback.Snapshot
		if err := client.Get(ctx, "/playback", &snap); err != nil {
			return samples, err
		}
		samples = append(samples, Sample{At: time.Now(), Snapshot: snap})
		if config.Verbose {
			log.Info(ctx, "poll",
				logger.String("state", snap.State.String()),
				logger.String("date", snap.Current.String()),
				logger.Float64("blend", snap.Blend))
		}
		if snap.State == playback.Stopped {
			return samples, nil
		}
	}
}

// checkFrames reads the latest frame and the first date's frame, and makes
// sure a date past the end is rejected. It returns the frames verified.
func checkFrames(ctx context.Context, client *HTTPClient, dates DatesResponse) (int, error) {
	var latest frame.Frame
	if err := client.Get(ctx, "/frame", &latest); err != nil {
		return 0, fmt.Errorf("latest frame: %w", err)
	}
	if err := verifyFrame(latest); err != nil {
		return 0, err
	}

	var at frame.Frame
	if err := client.Get(ctx, "/frame/"+dates.First.String(), &at); err != nil {
		return 1, fmt.Errorf("frame at %s: %w", dates.First, err)
	}
	if err := verifyFrame(at); err != nil {
		return 1, err
	}
	if at.Date != dates.First || at.Blend != 0 {
		return 1, fmt.Errorf("%w: frame at %s reports %s blend %.3f", ErrVerification, dates.First, at.Date, at.Blend)
	}

	past := dates.Last.AddDays(1).String()
	if err := client.Expect(ctx, http.MethodGet, "/frame/"+past, http.StatusNotFound); err != nil {
		return 2, fmt.Errorf("frame past the end: %w", err)
	}
	return 2, nil
}

// saveSamplesToFile saves the recorded samples to a JSON file.
func saveSamplesToFile(ctx context.Context, config *Config, samples []Sample) error {
	if len(samples) == 0 {
		return fmt.Errorf("no samples to save")
	}

	filename := config.OutputFile
	if filename == "" {
		timestamp := time.Now().Format("20060102_150405")
		filename = "probe_samples_" + timestamp + ".json"
	}

	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal samples: %w", err)
	}
	if err := os.WriteFile(filename, data, logFilePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Get().Info(ctx, "samples saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final probe statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats, dates DatesResponse) {
	var coverage float64
	if dates.Count > 0 {
		coverage = float64(stats.DistinctDates) / float64(dates.Count) * PercentageMultiplier
	}

	log.Info(ctx, "final statistics",
		logger.Int("polls", stats.Polls),
		logger.Int("distinctDates", stats.DistinctDates),
		logger.Float64("dateCoverage", coverage),
		logger.Int("framesChecked", stats.FramesChecked),
		logger.Int("streamFrames", stats.StreamFrames),
		logger.Int("streamOutOfOrder", stats.StreamOutOrder),
		logger.Duration("duration", stats.Duration))
}
