package api

import (
	"net/http"
	"strings"

	"github.com/okian/pulsemap/internal/domain/dateseq"
)

// FrameHandler serves composed frames.
type FrameHandler struct {
	deps FrameDependencies
}

// NewFrameHandler creates a new frame handler.
func NewFrameHandler(deps FrameDependencies) *FrameHandler {
	return &FrameHandler{deps: deps}
}

// HandleLatest handles GET /frame requests.
func (h *FrameHandler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	f, err := h.deps.LatestFrame(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// HandleAt handles GET /frame/{date}. Playback is not affected.
func (h *FrameHandler) HandleAt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	raw := strings.TrimPrefix(r.URL.Path, "/frame/")
	if raw == "" || strings.Contains(raw, "/") {
		http.NotFound(w, r)
		return
	}
	d, err := dateseq.Parse(raw)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	f, err := h.deps.FrameAt(r.Context(), d)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}
