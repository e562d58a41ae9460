package colorscale

import "errors"

// Sentinel kinds for color scale errors.
var (
	ErrInvalidBreakpoints = errors.New("invalid breakpoints")
	ErrInvalidColor       = errors.New("invalid color")
)
