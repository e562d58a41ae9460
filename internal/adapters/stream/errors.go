package stream

import "errors"

// Sentinel kinds for stream errors.
var (
	ErrClosed = errors.New("stream hub closed")
)
