package source

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/okian/pulsemap/internal/domain/dateseq"
	"github.com/okian/pulsemap/internal/domain/model"
	"github.com/okian/pulsemap/internal/domain/values"
	"github.com/okian/pulsemap/pkg/logger"
)

// Default generator configuration constants.
const (
	defaultEntities = 50
	defaultGapRate  = 0.05
)

// Constants shaping the generated positivity curves.
const (
	populationMin   = 50_000
	populationRange = 5_000_000
	baselineMin     = 0.01
	baselineRange   = 0.03
	peakMin         = 0.05
	peakRange       = 0.25
	widthMinDays    = 14
	widthRangeDays  = 60
	noiseAmplitude  = 0.01
	lonMin, lonSpan = -124.0, 57.0
	latMin, latSpan = 25.0, 24.0
)

// Synthetic generates positivity-like series: a baseline plus one Gaussian
// wave per entity, with noise and random gaps. The same seed always yields
// the same data.
type Synthetic struct {
	entities int
	seed     int64
	gapRate  float64
	logger   logger.Logger
}

// NewSynthetic creates a generator.
func NewSynthetic(opts ...Option) *Synthetic {
	s := &Synthetic{
		entities: defaultEntities,
		seed:     1,
		gapRate:  defaultGapRate,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("source")
	}
	return s
}

// Load implements Source.
func (s *Synthetic) Load(ctx context.Context, seq *dateseq.Sequence, b *values.Builder) error {
	rng := rand.New(rand.NewPCG(uint64(s.seed), uint64(s.seed)^0x9e3779b97f4a7c15)) //nolint:gosec // reproducible demo data
	days := float64(seq.Len())

	records := 0
	for i := 0; i < s.entities; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("synthetic source: %w", err)
		}

		e := model.Entity{
			ID:         fmt.Sprintf("E%03d", i+1),
			Population: float64(populationMin + rng.IntN(populationRange)),
			Position:   [2]float64{lonMin + rng.Float64()*lonSpan, latMin + rng.Float64()*latSpan},
		}
		b.AddEntity(e)

		baseline := baselineMin + rng.Float64()*baselineRange
		peak := peakMin + rng.Float64()*peakRange
		center := rng.Float64() * days
		width := widthMinDays + rng.Float64()*widthRangeDays

		idx := 0
		for d := range seq.All() {
			x := (float64(idx) - center) / width
			idx++
			if rng.Float64() < s.gapRate {
				continue
			}
			v := baseline + peak*math.Exp(-x*x/2) + (rng.Float64()*2-1)*noiseAmplitude
			b.Record(e.ID, d, math.Max(0, v))
			records++
		}
	}

	s.logger.Info(ctx, "synthetic data generated",
		logger.Int("entities", s.entities),
		logger.Int("records", records),
		logger.String("from", seq.First().String()),
		logger.String("to", seq.Last().String()),
	)
	return nil
}
