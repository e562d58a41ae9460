package service

import (
	"time"

	"github.com/okian/pulsemap/internal/domain/frame"
	"github.com/okian/pulsemap/internal/domain/playback"
	"github.com/okian/pulsemap/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithClock sets the clock driving playback ticks.
func WithClock(clock playback.Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithBlendSteps sets the number of ticks between two dates.
func WithBlendSteps(steps int) Option {
	return func(s *Service) {
		if steps > 0 {
			s.steps = steps
		}
	}
}

// WithTickInterval sets the initial tick interval.
func WithTickInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithEndPolicy sets what happens after the last date.
func WithEndPolicy(p playback.EndPolicy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithFrameOptions passes options to the frame compositor.
func WithFrameOptions(opts ...frame.Option) Option {
	return func(s *Service) {
		s.frameOpts = append(s.frameOpts, opts...)
	}
}

// WithWorkerCount sets the number of frame workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the frame queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithStreamBuffer sets the per-subscriber frame backlog.
func WithStreamBuffer(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.streamBuffer = size
		}
	}
}

// WithLegend sets how legend thresholds are labelled, e.g. (100, "%").
func WithLegend(labelScale float64, suffix string) Option {
	return func(s *Service) {
		if labelScale > 0 {
			s.legendScale = labelScale
			s.legendSuffix = suffix
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}
