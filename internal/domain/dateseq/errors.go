package dateseq

import "errors"

// Sentinel kinds for date sequence errors.
var (
	ErrInvalidRange = errors.New("invalid date range")
	ErrInvalidDate  = errors.New("invalid date")
)
