package frame

import (
	"github.com/okian/pulsemap/internal/domain/model"
	"github.com/okian/pulsemap/internal/domain/types"
)

// Normalizer maps a blended reading for an entity onto the color scale's
// domain.
type Normalizer func(e model.Entity, r types.Reading) types.Reading

// Identity leaves the reading as is.
func Identity(_ model.Entity, r types.Reading) types.Reading { return r }

// PerCapita divides by population and multiplies by per, e.g. 100000 for
// cases per 100k. Entities without a population yield no data.
func PerCapita(per float64) Normalizer {
	return func(e model.Entity, r types.Reading) types.Reading {
		if !r.Usable() || !(e.Population > 0) {
			return types.NoData
		}
		return types.Some(r.Value / e.Population * per)
	}
}

// Scaled multiplies by factor after another normalizer.
func Scaled(n Normalizer, factor float64) Normalizer {
	return func(e model.Entity, r types.Reading) types.Reading {
		out := n(e, r)
		if !out.Usable() {
			return types.NoData
		}
		return types.Some(out.Value * factor)
	}
}
