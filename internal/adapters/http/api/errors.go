package api

import (
	"errors"
	"net/http"

	service "github.com/okian/pulsemap/internal/app"
	"github.com/okian/pulsemap/internal/domain/dateseq"
	"github.com/okian/pulsemap/internal/domain/playback"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
)

// statusFor maps domain errors onto an HTTP status and a stable code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, playback.ErrOutOfRange):
		return http.StatusNotFound, "out_of_range"
	case errors.Is(err, playback.ErrInvalidRate):
		return http.StatusBadRequest, "invalid_rate"
	case errors.Is(err, dateseq.ErrInvalidDate):
		return http.StatusBadRequest, "invalid_date"
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, playback.ErrClosed):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
