// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/okian/pulsemap/internal/domain/colorscale"
	"github.com/okian/pulsemap/internal/domain/dateseq"
	"github.com/okian/pulsemap/internal/domain/frame"
	"github.com/okian/pulsemap/internal/domain/model"
	"github.com/okian/pulsemap/internal/domain/playback"
)

// PlaybackDependencies drive the animation.
type PlaybackDependencies interface {
	Play(ctx context.Context) (playback.Snapshot, error)
	Pause(ctx context.Context) (playback.Snapshot, error)
	Resume(ctx context.Context) (playback.Snapshot, error)
	Toggle(ctx context.Context) (playback.Snapshot, error)
	Reset(ctx context.Context) (playback.Snapshot, error)
	Seek(ctx context.Context, date dateseq.DateKey) (playback.Snapshot, error)
	SeekIndex(ctx context.Context, i int) (playback.Snapshot, error)
	SetRate(ctx context.Context, d time.Duration) (playback.Snapshot, error)
	SetSpeed(ctx context.Context, speed int) (playback.Snapshot, error)
	Snapshot(ctx context.Context) (playback.Snapshot, error)
}

// FrameDependencies read composed frames.
type FrameDependencies interface {
	LatestFrame(ctx context.Context) (frame.Frame, error)
	FrameAt(ctx context.Context, date dateseq.DateKey) (frame.Frame, error)
}

// ReferenceDependencies expose the static inputs of the map.
type ReferenceDependencies interface {
	Legend(ctx context.Context) []colorscale.Band
	NoDataColor(ctx context.Context) model.RGBA
	Dates(ctx context.Context) *dateseq.Sequence
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	PlaybackDependencies
	FrameDependencies
	ReferenceDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	playbackHandler  *PlaybackHandler
	frameHandler     *FrameHandler
	referenceHandler *ReferenceHandler
	stream           http.Handler
}

// ServerOption applies a configuration option to the Server.
type ServerOption func(*Server)

// WithStream mounts the frame stream handler at /stream.
func WithStream(h http.Handler) ServerOption {
	return func(s *Server) {
		if h != nil {
			s.stream = h
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...ServerOption) *Server {
	s := &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		playbackHandler:  NewPlaybackHandler(deps),
		frameHandler:     NewFrameHandler(deps),
		referenceHandler: NewReferenceHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("/playback", MetricsMiddleware(s.playbackHandler.HandleGetState, "playback"))
	mux.HandleFunc("/playback/seek", MetricsMiddleware(s.playbackHandler.HandleSeek, "playback_seek"))
	mux.HandleFunc("/playback/rate", MetricsMiddleware(s.playbackHandler.HandleRate, "playback_rate"))
	mux.HandleFunc("/playback/speed", MetricsMiddleware(s.playbackHandler.HandleSpeed, "playback_speed"))
	mux.HandleFunc("/playback/", MetricsMiddleware(s.playbackHandler.HandleCommand, "playback_command"))

	mux.HandleFunc("/frame", MetricsMiddleware(s.frameHandler.HandleLatest, "frame"))
	mux.HandleFunc("/frame/", MetricsMiddleware(s.frameHandler.HandleAt, "frame_at"))

	mux.HandleFunc("/legend", MetricsMiddleware(s.referenceHandler.HandleLegend, "legend"))
	mux.HandleFunc("/dates", MetricsMiddleware(s.referenceHandler.HandleDates, "dates"))

	if s.stream != nil {
		mux.Handle("/stream", s.stream)
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError translates err with statusFor.
func writeDomainError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeError(w, status, code, err)
}
