// Package frame turns the playback state into per-entity render attributes.
package frame

import (
	"math"
	"time"

	"github.com/okian/pulsemap/internal/domain/colorscale"
	"github.com/okian/pulsemap/internal/domain/dateseq"
	"github.com/okian/pulsemap/internal/domain/model"
	"github.com/okian/pulsemap/internal/domain/playback"
	"github.com/okian/pulsemap/internal/domain/types"
	"github.com/okian/pulsemap/pkg/metrics"
)

// Default compositor configuration constants.
const (
	DefaultElevationScale = 250
)

// Source is the read side of the value store.
type Source interface {
	Lookup(entityID string, date dateseq.DateKey) types.Reading
	WindowSum(entityID string, end dateseq.DateKey, days int) types.Reading
}

// Frame is one rendered snapshot of every entity. Version is the snapshot's
// commit order. Seq numbers frames in the order the pipeline received them
// and is zero for frames composed on demand.
type Frame struct {
	Seq        uint64             `json:"seq"`
	Version    uint64             `json:"version"`
	Date       dateseq.DateKey    `json:"date"`
	Previous   dateseq.DateKey    `json:"previous"`
	Blend      float64            `json:"blend"`
	State      playback.State     `json:"state"`
	Generation uint64             `json:"generation"`
	Attributes []model.Attributes `json:"attributes"`
}

// Compositor computes attributes as a pure function of the snapshot, the
// entity, the store, and the scale. It keeps no state between frames.
type Compositor struct {
	source         Source
	scale          *colorscale.Scale
	normalize      Normalizer
	elevationScale float64
	window         int
}

// New creates a Compositor.
func New(source Source, scale *colorscale.Scale, opts ...Option) *Compositor {
	c := &Compositor{
		source:         source,
		scale:          scale,
		normalize:      Identity,
		elevationScale: DefaultElevationScale,
		window:         1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Blend interpolates between the previous and current readings. A missing
// operand falls back to the other; both missing is no data.
func Blend(previous, current types.Reading, fraction float64) types.Reading {
	previous = previous.Or(current)
	current = current.Or(previous)
	if !current.Usable() {
		return types.NoData
	}
	f := math.Max(0, math.Min(1, fraction))
	return types.Some(previous.Value*(1-f) + current.Value*f)
}

// Value returns the blended value of e for the snapshot.
func (c *Compositor) Value(s playback.Snapshot, e model.Entity) types.Reading {
	return Blend(c.read(e.ID, s.Previous), c.read(e.ID, s.Current), s.Blend)
}

// Attributes computes the render record for one entity.
func (c *Compositor) Attributes(s playback.Snapshot, e model.Entity) model.Attributes {
	v := c.Value(s, e)
	return model.Attributes{
		EntityID:  e.ID,
		Color:     c.scale.ColorFor(c.normalize(e, v)),
		Elevation: c.elevation(v),
		Position:  e.Position,
		Value:     v,
	}
}

// Compose computes the frame for every entity, in the given order.
func (c *Compositor) Compose(s playback.Snapshot, entities []model.Entity) Frame {
	start := time.Now()
	f := Frame{
		Date:       s.Current,
		Previous:   s.Previous,
		Blend:      s.Blend,
		State:      s.State,
		Generation: s.Generation,
		Version:    s.Version,
		Attributes: make([]model.Attributes, len(entities)),
	}
	missing := 0
	for i, e := range entities {
		f.Attributes[i] = c.Attributes(s, e)
		if !f.Attributes[i].Value.Valid {
			missing++
		}
	}

	metrics.RecordFrameComposeLatency(float64(time.Since(start).Microseconds()) / 1000)
	metrics.UpdateFrameEntities(len(entities))
	metrics.RecordNoDataEntities(missing)
	return f
}

func (c *Compositor) read(entityID string, d dateseq.DateKey) types.Reading {
	if c.window > 1 {
		return c.source.WindowSum(entityID, d, c.window)
	}
	return c.source.Lookup(entityID, d)
}

// elevation is never negative; no data is flat.
func (c *Compositor) elevation(v types.Reading) float64 {
	if !v.Usable() {
		return 0
	}
	return math.Max(0, v.Value*c.elevationScale)
}
