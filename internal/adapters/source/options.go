package source

import (
	"github.com/okian/pulsemap/pkg/logger"
)

// Option applies a configuration option to the Synthetic source.
type Option func(*Synthetic)

// WithEntities sets how many entities are generated.
func WithEntities(n int) Option {
	return func(s *Synthetic) {
		if n >= 0 {
			s.entities = n
		}
	}
}

// WithSeed makes the generated data reproducible.
func WithSeed(seed int64) Option {
	return func(s *Synthetic) {
		s.seed = seed
	}
}

// WithGapRate sets the probability that an (entity, date) pair has no data.
func WithGapRate(rate float64) Option {
	return func(s *Synthetic) {
		if rate >= 0 && rate < 1 {
			s.gapRate = rate
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Synthetic) {
		if l != nil {
			s.logger = l
		}
	}
}
