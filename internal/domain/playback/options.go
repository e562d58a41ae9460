package playback

import (
	"time"

	"github.com/okian/pulsemap/pkg/logger"
)

// Option applies a configuration option to the Controller.
type Option func(*Controller)

// WithClock sets the clock that drives ticks.
func WithClock(clock Clock) Option {
	return func(c *Controller) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithSteps sets the number of ticks per inter-date transition.
func WithSteps(steps int) Option {
	return func(c *Controller) {
		if steps > 0 {
			c.steps = steps
		}
	}
}

// WithTickInterval sets the initial tick interval.
func WithTickInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithEndPolicy sets the behaviour at the end of the sequence.
func WithEndPolicy(p EndPolicy) Option {
	return func(c *Controller) {
		c.policy = p
	}
}

// WithLogger sets a custom logger for the controller.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}
