// Package colorscale maps scalar values to colors by piecewise-linear
// interpolation over a fixed breakpoint table.
package colorscale

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/okian/pulsemap/internal/domain/model"
	"github.com/okian/pulsemap/internal/domain/types"
)

// Default scale configuration constants.
const (
	DefaultAlpha = 150
)

// DefaultNoData is the neutral gray used when a value is absent.
var DefaultNoData = model.RGBA{240, 240, 240, 255}

// RGB is an opaque 8-bit color.
type RGB [3]uint8

// Breakpoint pins a color to a threshold.
type Breakpoint struct {
	Threshold float64 `json:"threshold"`
	Color     RGB     `json:"color"`
}

// Scale is immutable after New. ColorFor depends only on its argument and
// the table.
type Scale struct {
	stops  []Breakpoint
	alpha  uint8
	noData model.RGBA
}

// New validates the table and builds a Scale. Thresholds must be finite
// and strictly increasing.
func New(breakpoints []Breakpoint, opts ...Option) (*Scale, error) {
	if len(breakpoints) == 0 {
		return nil, fmt.Errorf("%w: empty table", ErrInvalidBreakpoints)
	}
	for i, b := range breakpoints {
		if math.IsNaN(b.Threshold) || math.IsInf(b.Threshold, 0) {
			return nil, fmt.Errorf("%w: threshold %d is not finite", ErrInvalidBreakpoints, i)
		}
		if i > 0 && b.Threshold <= breakpoints[i-1].Threshold {
			return nil, fmt.Errorf("%w: threshold %d (%g) does not increase", ErrInvalidBreakpoints, i, b.Threshold)
		}
	}

	s := &Scale{
		stops:  append([]Breakpoint(nil), breakpoints...),
		alpha:  DefaultAlpha,
		noData: DefaultNoData,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// FromHex pairs thresholds with "#RRGGBB" colors.
func FromHex(thresholds []float64, colors []string, opts ...Option) (*Scale, error) {
	if len(thresholds) != len(colors) {
		return nil, fmt.Errorf("%w: %d thresholds but %d colors", ErrInvalidBreakpoints, len(thresholds), len(colors))
	}
	bps := make([]Breakpoint, len(thresholds))
	for i, t := range thresholds {
		c, err := ParseHex(colors[i])
		if err != nil {
			return nil, err
		}
		bps[i] = Breakpoint{Threshold: t, Color: c}
	}
	return New(bps, opts...)
}

// ParseHex reads "#RRGGBB" or "RRGGBB".
func ParseHex(s string) (RGB, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 {
		return RGB{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return RGB{uint8(v >> 16), uint8(v >> 8), uint8(v)}, nil
}

// ParseRGBA reads "#RRGGBB" (opaque) or "#RRGGBBAA".
func ParseRGBA(s string) (model.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(h) {
	case 6:
		c, err := ParseHex(h)
		if err != nil {
			return model.RGBA{}, err
		}
		return model.RGBA{c[0], c[1], c[2], 255}, nil
	case 8:
		v, err := strconv.ParseUint(h, 16, 32)
		if err != nil {
			return model.RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
		}
		return model.RGBA{uint8(v >> 24), uint8(v >> 16), uint8(v >> 8), uint8(v)}, nil
	default:
		return model.RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
}

// ColorFor maps a reading to a color. Absent or non-finite readings get
// the no-data sentinel without interpolation.
func (s *Scale) ColorFor(r types.Reading) model.RGBA {
	if !r.Usable() {
		return s.noData
	}
	return s.withAlpha(s.interpolate(r.Value))
}

// NoData returns the sentinel color.
func (s *Scale) NoData() model.RGBA { return s.noData }

// Breakpoints returns a copy of the table.
func (s *Scale) Breakpoints() []Breakpoint {
	return append([]Breakpoint(nil), s.stops...)
}

func (s *Scale) interpolate(v float64) RGB {
	first, last := s.stops[0], s.stops[len(s.stops)-1]
	if v <= first.Threshold {
		return first.Color
	}
	if v >= last.Threshold {
		return last.Color
	}

	// Find the segment [lo, hi) holding v; lo is exact at each threshold.
	i := 0
	for i+1 < len(s.stops) && s.stops[i+1].Threshold <= v {
		i++
	}
	lo, hi := s.stops[i], s.stops[i+1]
	f := (v - lo.Threshold) / (hi.Threshold - lo.Threshold)

	var out RGB
	for ch := range out {
		a, b := float64(lo.Color[ch]), float64(hi.Color[ch])
		out[ch] = uint8(math.Round(a + f*(b-a)))
	}
	return out
}

func (s *Scale) withAlpha(c RGB) model.RGBA {
	return model.RGBA{c[0], c[1], c[2], s.alpha}
}
