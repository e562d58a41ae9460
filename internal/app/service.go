// Package service wires playback, frame composition and streaming together
// and implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	framequeue "github.com/okian/pulsemap/internal/adapters/mq/queue"
	workerpool "github.com/okian/pulsemap/internal/adapters/mq/worker"
	"github.com/okian/pulsemap/internal/adapters/stream"
	"github.com/okian/pulsemap/internal/domain/colorscale"
	"github.com/okian/pulsemap/internal/domain/dateseq"
	"github.com/okian/pulsemap/internal/domain/frame"
	"github.com/okian/pulsemap/internal/domain/model"
	"github.com/okian/pulsemap/internal/domain/playback"
	"github.com/okian/pulsemap/internal/domain/values"
	"github.com/okian/pulsemap/pkg/logger"
	"github.com/okian/pulsemap/pkg/metrics"
)

// renderer adapts the compositor to workerpool.Composer.
type renderer struct {
	compositor *frame.Compositor
	entities   []model.Entity
}

func (r renderer) Compose(ctx context.Context, s playback.Snapshot) (frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return frame.Frame{}, err
	}
	return r.compositor.Compose(s, r.entities), nil
}

// Service implements the API dependencies for the playback system.
type Service struct {
	mu sync.RWMutex

	// Inputs
	seq   *dateseq.Sequence
	store *values.Store
	scale *colorscale.Scale

	// Core components
	controller *playback.Controller
	render     renderer
	frameQueue *framequeue.InMemoryQueue
	workerPool *workerpool.Pool
	hub        *stream.Hub

	// Configuration
	clock        playback.Clock
	steps        int
	interval     time.Duration
	policy       playback.EndPolicy
	frameOpts    []frame.Option
	workerCount  int
	queueSize    int
	streamBuffer int
	legendScale  float64
	legendSuffix string

	// State
	started     bool
	unsubscribe func()
	cancel      context.CancelFunc

	// Logging
	logger logger.Logger
}

// New constructs a Service over a date range, a value store and a scale.
func New(seq *dateseq.Sequence, store *values.Store, scale *colorscale.Scale, opts ...Option) *Service {
	s := &Service{
		seq:          seq,
		store:        store,
		scale:        scale,
		steps:        playback.DefaultSteps,
		interval:     playback.DefaultTickInterval,
		policy:       playback.EndStop,
		workerCount:  max(2, runtime.NumCPU()/2),
		queueSize:    64,
		streamBuffer: 16,
		legendScale:  100,
		legendSuffix: "%",
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start builds the controller and the frame pipeline and starts the
// workers. Playback itself stays stopped until Play.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.seq == nil || s.store == nil || s.scale == nil {
		return errors.New("start: sequence, store and scale are required")
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting playback service...")

	ctrlOpts := []playback.Option{
		playback.WithSteps(s.steps),
		playback.WithTickInterval(s.interval),
		playback.WithEndPolicy(s.policy),
		playback.WithLogger(s.logger.Named("playback")),
	}
	if s.clock != nil {
		ctrlOpts = append(ctrlOpts, playback.WithClock(s.clock))
	}
	s.controller = playback.New(s.seq, ctrlOpts...)

	s.render = renderer{
		compositor: frame.New(s.store, s.scale, s.frameOpts...),
		entities:   s.store.Entities(),
	}
	s.hub = stream.NewHub(
		stream.WithBuffer(s.streamBuffer),
		stream.WithLogger(s.logger.Named("stream")),
	)
	s.frameQueue = framequeue.NewInMemoryQueue(framequeue.WithCapacity(s.queueSize))

	// Workers outlive the start request.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.workerPool = workerpool.NewPool(s.workerCount, s.frameQueue, s.render, s.hub,
		workerpool.WithPoolLogger(s.logger.Named("worker-pool")),
	)
	s.workerPool.Start(runCtx)

	s.unsubscribe = s.controller.Subscribe(s.onEvent)

	// Publish the initial frame so readers never see an empty map.
	if _, err := s.frameQueue.Enqueue(ctx, s.controller.Snapshot()); err != nil {
		s.logger.Warn(ctx, "initial frame not queued", logger.Error(err))
	}

	s.started = true
	s.logger.Info(ctx, "playback service started",
		logger.Int("dates", s.seq.Len()),
		logger.Int("entities", s.store.Len()),
		logger.Int("records", s.store.Records()),
		logger.Int("workers", s.workerPool.Size()),
		logger.Int("queueSize", s.queueSize),
	)

	return nil
}

// Stop tears the pipeline down: the timer first, then the workers once the
// queue drains, then the stream subscribers.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(ctx, "stopping playback service...")

	s.unsubscribe()
	_ = s.controller.Close()

	if err := s.workerPool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
	}
	_ = s.hub.Close()
	s.cancel()

	s.started = false
	s.logger.Info(ctx, "playback service stopped")
}

// onEvent turns every controller notification into a frame job. It runs on
// the tick path, so it must never block.
func (s *Service) onEvent(e playback.Event) {
	if e.Kind == playback.EventRateChanged {
		return
	}
	_, err := s.frameQueue.Enqueue(context.Background(), e.Snapshot)
	if err != nil && !errors.Is(err, framequeue.ErrClosed) {
		s.logger.Warn(context.Background(), "frame not queued",
			logger.String("event", e.Kind.String()),
			logger.Error(err),
		)
	}
}

func (s *Service) ctrl() (*playback.Controller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.controller, nil
}

func (s *Service) control(op func(c *playback.Controller) (playback.Snapshot, error)) (playback.Snapshot, error) {
	c, err := s.ctrl()
	if err != nil {
		return playback.Snapshot{}, err
	}
	return op(c)
}

// Play restarts playback from the first date.
func (s *Service) Play(ctx context.Context) (playback.Snapshot, error) {
	return s.control(func(c *playback.Controller) (playback.Snapshot, error) { return c.Play(ctx) })
}

// Pause holds the current position.
func (s *Service) Pause(ctx context.Context) (playback.Snapshot, error) {
	return s.control(func(c *playback.Controller) (playback.Snapshot, error) { return c.Pause(ctx) })
}

// Resume continues from a paused position.
func (s *Service) Resume(ctx context.Context) (playback.Snapshot, error) {
	return s.control(func(c *playback.Controller) (playback.Snapshot, error) { return c.Resume(ctx) })
}

// Toggle flips between running and paused.
func (s *Service) Toggle(ctx context.Context) (playback.Snapshot, error) {
	return s.control(func(c *playback.Controller) (playback.Snapshot, error) { return c.Toggle(ctx) })
}

// Reset stops playback at the first date.
func (s *Service) Reset(ctx context.Context) (playback.Snapshot, error) {
	return s.control(func(c *playback.Controller) (playback.Snapshot, error) { return c.Reset(ctx) })
}

// Seek jumps to date.
func (s *Service) Seek(ctx context.Context, date dateseq.DateKey) (playback.Snapshot, error) {
	return s.control(func(c *playback.Controller) (playback.Snapshot, error) { return c.Seek(ctx, date) })
}

// SeekIndex jumps to the date at position i.
func (s *Service) SeekIndex(ctx context.Context, i int) (playback.Snapshot, error) {
	return s.control(func(c *playback.Controller) (playback.Snapshot, error) { return c.SeekIndex(ctx, i) })
}

// SetRate changes the tick interval.
func (s *Service) SetRate(ctx context.Context, d time.Duration) (playback.Snapshot, error) {
	return s.control(func(c *playback.Controller) (playback.Snapshot, error) { return c.SetRate(ctx, d) })
}

// SetSpeed maps a 0..900 speed slider onto the tick interval.
func (s *Service) SetSpeed(ctx context.Context, speed int) (playback.Snapshot, error) {
	return s.control(func(c *playback.Controller) (playback.Snapshot, error) {
		return c.SetRate(ctx, playback.IntervalForSpeed(speed, c.Snapshot().Steps))
	})
}

// Snapshot returns the current animation state.
func (s *Service) Snapshot(_ context.Context) (playback.Snapshot, error) {
	return s.control(func(c *playback.Controller) (playback.Snapshot, error) { return c.Snapshot(), nil })
}

// LatestFrame returns the newest published frame, composing one from the
// current state when the pipeline has not published yet.
func (s *Service) LatestFrame(ctx context.Context) (frame.Frame, error) {
	c, err := s.ctrl()
	if err != nil {
		return frame.Frame{}, err
	}
	if f, ok := s.hub.Latest(); ok {
		return f, nil
	}
	return s.render.Compose(ctx, c.Snapshot())
}

// FrameAt composes the frame for date with a zero blend without touching
// playback.
func (s *Service) FrameAt(ctx context.Context, date dateseq.DateKey) (frame.Frame, error) {
	c, err := s.ctrl()
	if err != nil {
		return frame.Frame{}, err
	}
	idx, ok := s.seq.IndexOf(date)
	if !ok {
		return frame.Frame{}, fmt.Errorf("%w: %s not in [%s, %s]", playback.ErrOutOfRange, date, s.seq.First(), s.seq.Last())
	}
	cur := c.Snapshot()
	return s.render.Compose(ctx, playback.Snapshot{
		State:    cur.State,
		Current:  date,
		Previous: date,
		Index:    idx,
		Steps:    cur.Steps,
	})
}

// Subscribe opens a frame subscription.
func (s *Service) Subscribe(_ context.Context) (*stream.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.hub.Subscribe()
}

// Hub returns the frame stream hub, or nil before Start.
func (s *Service) Hub() *stream.Hub {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hub
}

// Legend returns the color bands of the active scale.
func (s *Service) Legend(_ context.Context) []colorscale.Band {
	return s.scale.Legend(s.legendScale, s.legendSuffix)
}

// NoDataColor returns the fill used for entities without data.
func (s *Service) NoDataColor(_ context.Context) model.RGBA {
	return s.scale.NoData()
}

// Dates returns the played date sequence.
func (s *Service) Dates(_ context.Context) *dateseq.Sequence {
	return s.seq
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dates":       s.seq.Len(),
		"entities":    s.store.Len(),
		"records":     s.store.Records(),
	}

	if s.started {
		snap := s.controller.Snapshot()
		queueLen := s.frameQueue.Len(ctx)

		stats["state"] = snap.State.String()
		stats["current"] = snap.Current.String()
		stats["index"] = snap.Index
		stats["blend"] = snap.Blend
		stats["tickIntervalMs"] = snap.TickIntervalMS
		stats["activeTimers"] = s.controller.ActiveTimers()
		stats["queueLength"] = queueLen
		stats["framesPublished"] = s.workerPool.Processed()
		stats["framesEvicted"] = s.frameQueue.Dropped()
		stats["subscribers"] = s.hub.Len()
		if stale, err := metrics.Value("stale_ticks_total"); err == nil {
			stats["staleTicks"] = stale
		}

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.workerPool.Size())
	}

	return stats
}
