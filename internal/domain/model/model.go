// Package model contains domain models passed between layers.
package model

import "github.com/okian/pulsemap/internal/domain/types"

// Entity is a spatial feature carrying one metric value per date.
type Entity struct {
	ID         string     // stable identifier, e.g. county FIPS
	Population float64    // normalization denominator
	Position   [2]float64 // projected x/y as handed to the renderer
}

// RGBA is an 8-bit color with alpha.
type RGBA [4]uint8

// Attributes is the per-entity record the renderer consumes every tick.
type Attributes struct {
	EntityID  string        `json:"entity_id"`
	Color     RGBA          `json:"color"`
	Elevation float64       `json:"elevation"`
	Position  [2]float64    `json:"position"`
	Value     types.Reading `json:"value"`
}
