// Package types contains common types used across the application
package types

import "math"

// Reading is a scalar metric that may be absent. The zero value is NoData,
// which is distinct from a present zero.
type Reading struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// NoData is the absent reading.
var NoData = Reading{}

// Some wraps a present value.
func Some(v float64) Reading {
	return Reading{Value: v, Valid: true}
}

// Usable reports whether the reading holds a finite value.
func (r Reading) Usable() bool {
	return r.Valid && !math.IsNaN(r.Value) && !math.IsInf(r.Value, 0)
}

// Or returns r when usable and fallback otherwise.
func (r Reading) Or(fallback Reading) Reading {
	if r.Usable() {
		return r
	}
	return fallback
}
