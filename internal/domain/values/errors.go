package values

import "errors"

// Sentinel kinds for value store errors.
var (
	ErrMalformedRecord = errors.New("malformed record")
	ErrUnknownEntity   = errors.New("unknown entity")
)
