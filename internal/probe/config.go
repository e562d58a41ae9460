package probe

import (
	"time"

	"github.com/okian/pulsemap/internal/domain/dateseq"
	"github.com/okian/pulsemap/internal/domain/frame"
	"github.com/okian/pulsemap/internal/domain/playback"
)

// Config holds configuration for a probe run.
type Config struct {
	BaseURL      string        // Base URL of the service
	Timeout      time.Duration // HTTP request timeout
	PollInterval time.Duration // Delay between GET /playback polls
	RateMS       int           // Tick interval to set before playing; 0 keeps the server's
	Stream       bool          // Also watch /stream during playback
	OutputFile   string        // Output file for recorded samples
	LogFile      string        // Log file for probe output
	Verbose      bool          // Enable verbose logging
}

// Sample is one observation of the playback state.
type Sample struct {
	At       time.Time         `json:"at"`
	Snapshot playback.Snapshot `json:"snapshot"`
}

// DatesResponse mirrors GET /dates.
type DatesResponse struct {
	First dateseq.DateKey `json:"first"`
	Last  dateseq.DateKey `json:"last"`
	Count int             `json:"count"`
}

// Stats holds probe statistics.
type Stats struct {
	Polls          int
	DistinctDates  int
	FramesChecked  int
	StreamFrames   int
	StreamOutOrder int
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
}

// streamResult is what the websocket watcher hands back.
type streamResult struct {
	frames []frame.Frame
	err    error
}
