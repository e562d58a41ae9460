// Package playback steps through a date sequence on a wall-clock timer and
// keeps the sub-frame blend counter between the previous and current date.
package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/pulsemap/internal/domain/dateseq"
	"github.com/okian/pulsemap/pkg/logger"
	"github.com/okian/pulsemap/pkg/metrics"
)

// Default playback configuration constants.
const (
	DefaultSteps        = 20
	DefaultTickInterval = 40 * time.Millisecond

	maxSpeed       = 900
	speedCeilingMS = 1000
)

// Controller owns the animation state and the single timer that advances
// it. All operations and ticks are serialized by mu; listeners run after mu
// is released, so they may observe events out of commit order and should
// order them by Snapshot.Version.
type Controller struct {
	mu sync.Mutex

	seq      *dateseq.Sequence
	clock    Clock
	steps    int
	interval time.Duration
	policy   EndPolicy

	state    State
	current  dateseq.DateKey
	previous dateseq.DateKey
	step     int

	// gen changes whenever the timer is replaced or cancelled; ticks carry
	// the generation they were scheduled under.
	gen    uint64
	timer  Timer
	closed bool

	// version increases with every committed change that emits events.
	version uint64

	lmu       sync.RWMutex
	listeners map[uint64]Listener
	nextID    uint64

	logger logger.Logger
}

// New creates a stopped controller positioned at the first date.
func New(seq *dateseq.Sequence, opts ...Option) *Controller {
	if seq == nil {
		panic("playback: nil sequence")
	}
	c := &Controller{
		seq:       seq,
		clock:     SystemClock(),
		steps:     DefaultSteps,
		interval:  DefaultTickInterval,
		policy:    EndStop,
		state:     Stopped,
		current:   seq.First(),
		previous:  seq.First(),
		listeners: make(map[uint64]Listener),
	}

	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("playback")
	}

	metrics.UpdatePlaybackState(int(c.state))
	metrics.UpdateTickInterval(float64(c.interval.Milliseconds()))
	metrics.UpdateActiveTimers(0)
	return c
}

// Subscribe registers l and returns a function that removes it.
func (c *Controller) Subscribe(l Listener) (cancel func()) {
	c.lmu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = l
	c.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.lmu.Lock()
			delete(c.listeners, id)
			c.lmu.Unlock()
		})
	}
}

// Snapshot returns the current animation state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Sequence returns the date sequence being played.
func (c *Controller) Sequence() *dateseq.Sequence { return c.seq }

// ActiveTimers reports how many timers the controller holds: 0 or 1.
func (c *Controller) ActiveTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer == nil {
		return 0
	}
	return 1
}

// Play restarts playback from the first date.
func (c *Controller) Play(ctx context.Context) (Snapshot, error) {
	return c.apply(ctx, "play", c.playLocked)
}

func (c *Controller) playLocked() ([]Event, error) {
	from := c.state
	c.rewind()
	c.state = Running
	c.startTimer()
	return []Event{{Kind: EventStateChanged, From: from}}, nil
}

// Pause stops the timer and keeps the position. It is a no-op unless
// running.
func (c *Controller) Pause(ctx context.Context) (Snapshot, error) {
	return c.apply(ctx, "pause", c.pauseLocked)
}

func (c *Controller) pauseLocked() ([]Event, error) {
	if c.state != Running {
		return nil, nil
	}
	c.stopTimer()
	c.state = Paused
	return []Event{{Kind: EventStateChanged, From: Running}}, nil
}

// Resume restarts the timer without touching the position. It is a no-op
// unless paused.
func (c *Controller) Resume(ctx context.Context) (Snapshot, error) {
	return c.apply(ctx, "resume", c.resumeLocked)
}

func (c *Controller) resumeLocked() ([]Event, error) {
	if c.state != Paused {
		return nil, nil
	}
	c.state = Running
	c.startTimer()
	return []Event{{Kind: EventStateChanged, From: Paused}}, nil
}

// Toggle pauses when running and resumes otherwise; from Stopped it plays.
// The state is read and changed under one lock.
func (c *Controller) Toggle(ctx context.Context) (Snapshot, error) {
	return c.apply(ctx, "toggle", func() ([]Event, error) {
		switch c.state {
		case Running:
			return c.pauseLocked()
		case Paused:
			return c.resumeLocked()
		default:
			return c.playLocked()
		}
	})
}

// Reset cancels the timer and returns to Stopped at the first date.
func (c *Controller) Reset(ctx context.Context) (Snapshot, error) {
	return c.apply(ctx, "reset", func() ([]Event, error) {
		from := c.state
		c.stopTimer()
		c.rewind()
		c.state = Stopped
		return []Event{{Kind: EventStateChanged, From: from}}, nil
	})
}

// Seek jumps to date with a zero blend. Running stays running; a paused
// or stopped controller ends up paused at date.
func (c *Controller) Seek(ctx context.Context, date dateseq.DateKey) (Snapshot, error) {
	return c.apply(ctx, "seek", func() ([]Event, error) {
		if !c.seq.Contains(date) {
			return nil, fmt.Errorf("%w: %s not in [%s, %s]", ErrOutOfRange, date, c.seq.First(), c.seq.Last())
		}
		from := c.state
		c.current, c.previous, c.step = date, date, 0
		if c.state == Stopped {
			c.state = Paused
		}
		return []Event{{Kind: EventSeeked, From: from}}, nil
	})
}

// SeekIndex seeks to the date at position i of the sequence.
func (c *Controller) SeekIndex(ctx context.Context, i int) (Snapshot, error) {
	d, ok := c.seq.At(i)
	if !ok {
		return c.Snapshot(), fmt.Errorf("%w: index %d not in [0, %d)", ErrOutOfRange, i, c.seq.Len())
	}
	return c.Seek(ctx, d)
}

// SetRate changes the tick interval. A running timer is replaced at the
// new rate; the animation state is untouched.
func (c *Controller) SetRate(ctx context.Context, d time.Duration) (Snapshot, error) {
	return c.apply(ctx, "set_rate", func() ([]Event, error) {
		if d <= 0 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidRate, d)
		}
		c.interval = d
		metrics.UpdateTickInterval(float64(d.Milliseconds()))
		if c.state == Running {
			c.startTimer()
		}
		return []Event{{Kind: EventRateChanged, From: c.state}}, nil
	})
}

// Close cancels the timer for good. Later operations fail with ErrClosed
// and any tick still in flight is discarded.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	from := c.state
	c.stopTimer()
	c.closed = true
	c.state = Stopped
	if from != Stopped {
		c.version++
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info(context.Background(), "playback closed", logger.String("from", from.String()))
	if from != Stopped {
		c.emit([]Event{{Kind: EventStateChanged, From: from}}, snap)
	}
	return nil
}

// IntervalForSpeed maps a 0..900 speed slider to a tick interval: one date
// every 1000-speed milliseconds, split across steps ticks.
func IntervalForSpeed(speed, steps int) time.Duration {
	if speed < 0 {
		speed = 0
	}
	if speed > maxSpeed {
		speed = maxSpeed
	}
	if steps < 1 {
		steps = 1
	}
	d := time.Duration(speedCeilingMS-speed) * time.Millisecond / time.Duration(steps)
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}

// apply runs op under the lock, then publishes its events.
func (c *Controller) apply(ctx context.Context, name string, op func() ([]Event, error)) (Snapshot, error) {
	c.mu.Lock()
	if c.closed {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, ErrClosed
	}
	from := c.state
	events, err := op()
	if err == nil && len(events) > 0 {
		c.version++
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if err != nil {
		metrics.RecordErrorByComponent("playback", name)
		c.logger.Warn(ctx, "playback operation rejected", logger.String("op", name), logger.Error(err))
		return snap, err
	}
	if from != snap.State {
		metrics.RecordPlaybackTransition(from.String(), snap.State.String())
		c.logger.Info(ctx, "playback state changed",
			logger.String("op", name),
			logger.String("from", from.String()),
			logger.String("to", snap.State.String()),
			logger.String("date", snap.Current.String()),
		)
	}
	c.emit(events, snap)
	return snap, nil
}

// tick advances the blend counter. It ignores callbacks from timers that
// were replaced or cancelled.
func (c *Controller) tick(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.gen || c.state != Running {
		c.mu.Unlock()
		metrics.RecordStaleTick()
		return
	}
	events := c.advance()
	c.version++
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.emit(events, snap)
}

// advance must be called with mu held and the controller running.
func (c *Controller) advance() []Event {
	metrics.RecordPlaybackTick()
	c.step++
	if c.step < c.steps {
		return []Event{{Kind: EventTick, From: Running}}
	}

	if next, ok := c.seq.Next(c.current); ok {
		c.previous, c.current, c.step = c.current, next, 0
		metrics.RecordDateAdvance()
		return []Event{{Kind: EventAdvanced, From: Running}}
	}

	if c.policy == EndLoop {
		c.rewind()
		metrics.RecordPlaybackLooped()
		return []Event{{Kind: EventLooped, From: Running}}
	}

	// Last date fully blended in: the final frame keeps blend 1.
	c.step = c.steps
	c.stopTimer()
	c.state = Stopped
	metrics.RecordPlaybackCompleted()
	metrics.RecordPlaybackTransition(Running.String(), Stopped.String())
	return []Event{
		{Kind: EventCompleted, From: Running},
		{Kind: EventStateChanged, From: Running},
	}
}

func (c *Controller) rewind() {
	first := c.seq.First()
	c.current, c.previous, c.step = first, first, 0
}

// startTimer replaces any existing timer. Must be called with mu held.
func (c *Controller) startTimer() {
	c.stopTimer()
	gen := c.gen
	c.timer = c.clock.Every(c.interval, func() { c.tick(gen) })
	metrics.UpdateActiveTimers(1)
}

// stopTimer cancels the timer, if any, and invalidates pending ticks.
// Must be called with mu held.
func (c *Controller) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	metrics.UpdateActiveTimers(0)
}

func (c *Controller) snapshotLocked() Snapshot {
	idx, _ := c.seq.IndexOf(c.current)
	return Snapshot{
		State:          c.state,
		Running:        c.state == Running,
		Current:        c.current,
		Previous:       c.previous,
		Index:          idx,
		Blend:          float64(c.step) / float64(c.steps),
		Step:           c.step,
		Steps:          c.steps,
		TickInterval:   c.interval,
		TickIntervalMS: c.interval.Milliseconds(),
		Generation:     c.gen,
		Version:        c.version,
	}
}

func (c *Controller) emit(events []Event, snap Snapshot) {
	metrics.UpdatePlaybackState(int(snap.State))
	metrics.UpdateCurrentDateIndex(snap.Index)
	metrics.UpdateBlendFraction(snap.Blend)
	if len(events) == 0 {
		return
	}

	c.lmu.RLock()
	ls := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		ls = append(ls, l)
	}
	c.lmu.RUnlock()

	for _, e := range events {
		e.Snapshot = snap
		if e.Kind == EventCompleted {
			c.logger.Info(context.Background(), "playback completed", logger.String("date", snap.Current.String()))
		}
		for _, l := range ls {
			l(e)
		}
	}
}
