// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file and PULSEMAP_ env vars.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/okian/pulsemap/internal/domain/colorscale"
	"github.com/okian/pulsemap/internal/domain/dateseq"
	"github.com/okian/pulsemap/internal/domain/frame"
	"github.com/okian/pulsemap/internal/domain/playback"
	"github.com/okian/pulsemap/internal/domain/values"
)

// Scale presets accepted by ScalePreset.
const (
	PresetPositivity = "positivity"
	PresetYlOrRd     = "ylorrd"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// StartDate and EndDate bound the played sequence, inclusive (YYYY-MM-DD).
	StartDate string `koanf:"start_date"`
	EndDate   string `koanf:"end_date"`

	// TickIntervalMS is the wall-clock period of one blend step.
	TickIntervalMS int `koanf:"tick_interval_ms"`

	// BlendSteps is the number of ticks spent between two dates.
	BlendSteps int `koanf:"blend_steps"`

	// EndPolicy is "stop" or "loop".
	EndPolicy string `koanf:"end_policy"`

	// ScalePreset picks built-in breakpoints when Breakpoints is empty.
	ScalePreset string `koanf:"scale_preset"`

	// Breakpoints and Colors (#RRGGBB) define a custom color scale.
	Breakpoints []float64 `koanf:"breakpoints"`
	Colors      []string  `koanf:"colors"`

	// Alpha is the opacity applied to interpolated colors.
	Alpha int `koanf:"alpha"`

	// NoDataColor is the fill for entities without data (#RRGGBB or #RRGGBBAA).
	NoDataColor string `koanf:"no_data_color"`

	// ElevationScale multiplies the blended value into extrusion height.
	ElevationScale float64 `koanf:"elevation_scale"`

	// PerCapita, when positive, colors by value / population * PerCapita.
	PerCapita float64 `koanf:"per_capita"`

	// ColorFactor, when positive, multiplies the normalized value before
	// the color lookup: 0.001 maps per-100k rates onto the ylorrd scale.
	ColorFactor float64 `koanf:"color_factor"`

	// WindowDays, when positive, sums values over a trailing window.
	WindowDays int `koanf:"window_days"`

	// RequirePopulation rejects entities without a positive population.
	RequirePopulation bool `koanf:"require_population"`

	// FrameQueueSize bounds the snapshot queue feeding frame workers.
	FrameQueueSize int `koanf:"frame_queue_size"`

	// FrameWorkers sets the number of frame composition workers.
	FrameWorkers int `koanf:"frame_workers"`

	// StreamBuffer bounds the per-subscriber frame backlog.
	StreamBuffer int `koanf:"stream_buffer"`

	// SyntheticEntities and SyntheticSeed drive the built-in data source.
	SyntheticEntities int   `koanf:"synthetic_entities"`
	SyntheticSeed     int64 `koanf:"synthetic_seed"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		StartDate:         "2020-02-01",
		EndDate:           "2021-01-18",
		TickIntervalMS:    int(playback.DefaultTickInterval / time.Millisecond),
		BlendSteps:        playback.DefaultSteps,
		EndPolicy:         playback.EndStop.String(),
		ScalePreset:       PresetPositivity,
		Alpha:             colorscale.DefaultAlpha,
		NoDataColor:       "#F0F0F0FF",
		ElevationScale:    250,
		FrameQueueSize:    64,
		FrameWorkers:      max(2, runtime.NumCPU()/2),
		StreamBuffer:      16,
		SyntheticEntities: 50,
		SyntheticSeed:     1,
	}
}

// Validate checks ranges and parses every textual field once.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if _, err := c.Sequence(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.TickIntervalMS <= 0 {
		return fmt.Errorf("%w: tick_interval_ms must be positive, got %d", ErrInvalidConfig, c.TickIntervalMS)
	}
	if c.BlendSteps <= 0 {
		return fmt.Errorf("%w: blend_steps must be positive, got %d", ErrInvalidConfig, c.BlendSteps)
	}
	if _, err := c.Policy(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Alpha < 0 || c.Alpha > 255 {
		return fmt.Errorf("%w: alpha must be in [0, 255], got %d", ErrInvalidConfig, c.Alpha)
	}
	if _, err := c.Scale(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.ElevationScale < 0 {
		return fmt.Errorf("%w: elevation_scale must not be negative", ErrInvalidConfig)
	}
	if c.PerCapita < 0 || c.WindowDays < 0 || c.ColorFactor < 0 {
		return fmt.Errorf("%w: per_capita, window_days and color_factor must not be negative", ErrInvalidConfig)
	}
	if c.FrameQueueSize <= 0 || c.FrameWorkers <= 0 || c.StreamBuffer <= 0 {
		return fmt.Errorf("%w: frame_queue_size, frame_workers and stream_buffer must be positive", ErrInvalidConfig)
	}
	if c.SyntheticEntities < 0 {
		return fmt.Errorf("%w: synthetic_entities must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Sequence builds the configured date range.
func (c *Config) Sequence() (*dateseq.Sequence, error) {
	return dateseq.ParseRange(c.StartDate, c.EndDate)
}

// TickInterval returns TickIntervalMS as a duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMS) * time.Millisecond
}

// Policy parses EndPolicy.
func (c *Config) Policy() (playback.EndPolicy, error) {
	return playback.ParseEndPolicy(c.EndPolicy)
}

// Scale builds the color scale: custom breakpoints when given, otherwise
// the named preset.
func (c *Config) Scale() (*colorscale.Scale, error) {
	noData, err := colorscale.ParseRGBA(c.NoDataColor)
	if err != nil {
		return nil, err
	}
	opts := []colorscale.Option{
		colorscale.WithAlpha(uint8(c.Alpha)), //nolint:gosec // range checked by Validate
		colorscale.WithNoDataColor(noData),
	}

	if len(c.Breakpoints) > 0 || len(c.Colors) > 0 {
		return colorscale.FromHex(c.Breakpoints, c.Colors, opts...)
	}
	switch strings.ToLower(strings.TrimSpace(c.ScalePreset)) {
	case "", PresetPositivity:
		return colorscale.Positivity(opts...)
	case PresetYlOrRd:
		return colorscale.YlOrRd(opts...)
	default:
		return nil, fmt.Errorf("%w: unknown scale preset %q", colorscale.ErrInvalidBreakpoints, c.ScalePreset)
	}
}

// Legend returns how legend thresholds are labelled for the configured
// scale.
func (c *Config) Legend() (labelScale float64, suffix string) {
	if len(c.Breakpoints) > 0 || len(c.Colors) > 0 {
		return 1, ""
	}
	if strings.EqualFold(strings.TrimSpace(c.ScalePreset), PresetYlOrRd) {
		return 1000, ""
	}
	return 100, "%"
}

// FrameOptions returns the compositor options implied by the config. The
// normalizer is per-capita when PerCapita is set, then scaled by
// ColorFactor when that is set.
func (c *Config) FrameOptions() []frame.Option {
	opts := []frame.Option{frame.WithElevationScale(c.ElevationScale)}
	if c.WindowDays > 0 {
		opts = append(opts, frame.WithWindow(c.WindowDays))
	}

	var normalize frame.Normalizer = frame.Identity
	if c.PerCapita > 0 {
		normalize = frame.PerCapita(c.PerCapita)
	}
	if c.ColorFactor > 0 {
		normalize = frame.Scaled(normalize, c.ColorFactor)
	}
	return append(opts, frame.WithNormalizer(normalize))
}

// StoreOptions returns the value store options implied by the config.
func (c *Config) StoreOptions() []values.Option {
	return []values.Option{values.WithRequirePopulation(c.RequirePopulation)}
}
