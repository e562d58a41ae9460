package probe

import "time"

// Default configuration constants.
const (
	DefaultBaseURL      = "http://localhost:9080"
	DefaultTimeout      = 10 * time.Second
	DefaultPollInterval = 20 * time.Millisecond
)

// Verification constants.
const (
	FullBlend            = 1.0
	PercentageMultiplier = 100
)

// File permission constants.
const (
	logFilePermission   = 0600
	directoryPermission = 0750
)
