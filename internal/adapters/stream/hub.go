// Package stream fans composed frames out to renderers. The hub keeps the
// latest frame, discards frames that arrive out of order, and never blocks
// on a slow subscriber: when a subscriber's backlog is full its oldest frame
// is skipped.
package stream

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/okian/pulsemap/internal/domain/frame"
	"github.com/okian/pulsemap/pkg/logger"
	"github.com/okian/pulsemap/pkg/metrics"
)

// Default hub configuration constants.
const (
	defaultBuffer = 16
)

// Subscriber receives frames from a Hub.
type Subscriber struct {
	ID     string
	frames chan frame.Frame
	cancel func()
}

// Frames returns the delivery channel. It is closed when the subscription
// ends or the hub closes.
func (s *Subscriber) Frames() <-chan frame.Frame { return s.frames }

// Cancel ends the subscription. It is safe to call more than once.
func (s *Subscriber) Cancel() { s.cancel() }

// Hub is safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	subs    map[string]*Subscriber
	latest  frame.Frame
	hasLast bool
	closed  bool

	buffer int
	logger logger.Logger
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subs:   make(map[string]*Subscriber),
		buffer: defaultBuffer,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.Get().Named("stream")
	}
	metrics.UpdateStreamSubscribers(0)
	return h
}

// Subscribe registers a new subscriber. The latest frame, if any, is queued
// immediately so a fresh renderer does not wait for the next tick.
func (h *Hub) Subscribe() (*Subscriber, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}

	s := &Subscriber{
		ID:     uuid.NewString(),
		frames: make(chan frame.Frame, h.buffer),
	}
	var once sync.Once
	s.cancel = func() {
		once.Do(func() { h.remove(s.ID) })
	}
	if h.hasLast {
		s.frames <- h.latest
	}
	h.subs[s.ID] = s
	metrics.UpdateStreamSubscribers(len(h.subs))
	return s, nil
}

// Publish records f as the latest frame and offers it to every subscriber.
// Frames whose snapshot was committed before the latest one are discarded.
func (h *Hub) Publish(_ context.Context, f frame.Frame) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	if h.hasLast && stale(f, h.latest) {
		metrics.RecordFrameDropped("out_of_order")
		return nil
	}
	h.latest, h.hasLast = f, true

	for _, s := range h.subs {
		offer(s.frames, f)
	}
	return nil
}

// stale reports whether f was superseded by latest. Snapshot versions
// decide; frames of the same version fall back to pipeline order.
func stale(f, latest frame.Frame) bool {
	if f.Version != latest.Version {
		return f.Version < latest.Version
	}
	return f.Seq != 0 && f.Seq < latest.Seq
}

// offer pushes f, skipping the oldest queued frame when the buffer is full.
func offer(ch chan frame.Frame, f frame.Frame) {
	for {
		select {
		case ch <- f:
			metrics.RecordStreamSent()
			return
		default:
		}
		select {
		case <-ch:
			metrics.RecordStreamDropped()
		default:
		}
	}
}

// Latest returns the most recently published frame.
func (h *Hub) Latest() (frame.Frame, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest, h.hasLast
}

// Len returns the number of active subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every subscription. Later Publish and Subscribe calls fail
// with ErrClosed.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	for id, s := range h.subs {
		close(s.frames)
		delete(h.subs, id)
	}
	metrics.UpdateStreamSubscribers(0)
	return nil
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.subs[id]
	if !ok {
		return
	}
	close(s.frames)
	delete(h.subs, id)
	metrics.UpdateStreamSubscribers(len(h.subs))
}

// Handler serves the websocket endpoint. Each connection gets its own
// subscription and receives frames as JSON text messages until either side
// hangs up.
func (h *Hub) Handler() http.Handler {
	return websocket.Handler(h.serve)
}

func (h *Hub) serve(ws *websocket.Conn) {
	ctx := ws.Request().Context()
	defer func() { _ = ws.Close() }()

	sub, err := h.Subscribe()
	if err != nil {
		h.logger.Warn(ctx, "stream subscription refused", logger.Error(err))
		return
	}
	defer sub.Cancel()

	h.logger.Info(ctx, "stream client connected",
		logger.String("subscriber", sub.ID),
		logger.String("remote", ws.Request().RemoteAddr),
	)

	// Clients only listen; reading detects the hang-up.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		_, _ = io.Copy(io.Discard, ws)
	}()

	for {
		select {
		case <-gone:
			h.logger.Info(ctx, "stream client disconnected", logger.String("subscriber", sub.ID))
			return
		case f, ok := <-sub.Frames():
			if !ok {
				return
			}
			if err := websocket.JSON.Send(ws, f); err != nil {
				metrics.RecordErrorByComponent("stream", "send_error")
				h.logger.Warn(ctx, "stream send failed", logger.String("subscriber", sub.ID), logger.Error(err))
				return
			}
		}
	}
}
