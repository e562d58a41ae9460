package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/pulsemap/internal/domain/dateseq"
	"github.com/okian/pulsemap/internal/domain/playback"
)

// PlaybackHandler exposes the controller operations.
type PlaybackHandler struct {
	deps PlaybackDependencies
}

// NewPlaybackHandler creates a new playback handler.
func NewPlaybackHandler(deps PlaybackDependencies) *PlaybackHandler {
	return &PlaybackHandler{deps: deps}
}

// HandleGetState handles GET /playback requests.
func (h *PlaybackHandler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	snap, err := h.deps.Snapshot(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleCommand handles POST /playback/{play,pause,resume,toggle,reset}.
func (h *PlaybackHandler) HandleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	ctx := r.Context()
	var (
		snap playback.Snapshot
		err  error
	)
	switch strings.TrimPrefix(r.URL.Path, "/playback/") {
	case "play":
		snap, err = h.deps.Play(ctx)
	case "pause":
		snap, err = h.deps.Pause(ctx)
	case "resume":
		snap, err = h.deps.Resume(ctx)
	case "toggle":
		snap, err = h.deps.Toggle(ctx)
	case "reset":
		snap, err = h.deps.Reset(ctx)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleSeek handles POST /playback/seek?date=YYYY-MM-DD or ?index=N.
func (h *PlaybackHandler) HandleSeek(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	var (
		snap playback.Snapshot
		err  error
	)
	switch {
	case q.Get("date") != "":
		var d dateseq.DateKey
		d, err = dateseq.Parse(q.Get("date"))
		if err == nil {
			snap, err = h.deps.Seek(r.Context(), d)
		}
	case q.Get("index") != "":
		var i int
		i, err = strconv.Atoi(q.Get("index"))
		if err != nil {
			err = fmt.Errorf("%w: index %q", ErrBadRequest, q.Get("index"))
			break
		}
		snap, err = h.deps.SeekIndex(r.Context(), i)
	default:
		err = fmt.Errorf("%w: date or index is required", ErrBadRequest)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleRate handles POST /playback/rate?ms=N.
func (h *PlaybackHandler) HandleRate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	raw := r.URL.Query().Get("ms")
	ms, err := strconv.Atoi(raw)
	if err != nil {
		writeDomainError(w, fmt.Errorf("%w: ms %q", ErrBadRequest, raw))
		return
	}
	snap, err := h.deps.SetRate(r.Context(), time.Duration(ms)*time.Millisecond)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleSpeed handles POST /playback/speed?value=N, the 0..900 slider.
func (h *PlaybackHandler) HandleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	raw := r.URL.Query().Get("value")
	speed, err := strconv.Atoi(raw)
	if err != nil {
		writeDomainError(w, fmt.Errorf("%w: value %q", ErrBadRequest, raw))
		return
	}
	snap, err := h.deps.SetSpeed(r.Context(), speed)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
