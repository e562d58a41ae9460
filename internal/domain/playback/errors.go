package playback

import "errors"

// Sentinel kinds for playback errors.
var (
	ErrOutOfRange  = errors.New("date out of range")
	ErrInvalidRate = errors.New("invalid tick rate")
	ErrClosed      = errors.New("controller closed")
)
