// Package clocktest provides a manually driven playback.Clock for tests.
package clocktest

import (
	"sync"
	"time"

	"github.com/okian/pulsemap/internal/domain/playback"
)

// Manual is a Clock whose timers fire only when Fire is called.
type Manual struct {
	mu      sync.Mutex
	timers  []*timer
	created int
}

// New returns an empty Manual clock.
func New() *Manual { return &Manual{} }

type timer struct {
	clock   *Manual
	d       time.Duration
	fn      func()
	stopped bool
}

func (t *timer) Stop() {
	t.clock.mu.Lock()
	t.stopped = true
	t.clock.mu.Unlock()
}

// Every implements playback.Clock.
func (m *Manual) Every(d time.Duration, fn func()) playback.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &timer{clock: m, d: d, fn: fn}
	m.timers = append(m.timers, t)
	m.created++
	return t
}

// Fire runs the callback of every live timer once, synchronously.
func (m *Manual) Fire() {
	for _, t := range m.live() {
		t.fn()
	}
}

// FireN calls Fire n times.
func (m *Manual) FireN(n int) {
	for i := 0; i < n; i++ {
		m.Fire()
	}
}

// FireStale runs the callbacks of stopped timers, as a ticker goroutine
// that lost the race with Stop would.
func (m *Manual) FireStale() {
	m.mu.Lock()
	var stale []*timer
	for _, t := range m.timers {
		if t.stopped {
			stale = append(stale, t)
		}
	}
	m.mu.Unlock()
	for _, t := range stale {
		t.fn()
	}
}

// Live returns the number of timers not yet stopped.
func (m *Manual) Live() int {
	return len(m.live())
}

// Created returns how many timers were ever scheduled.
func (m *Manual) Created() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created
}

// Interval returns the period of the most recently scheduled live timer.
func (m *Manual) Interval() time.Duration {
	live := m.live()
	if len(live) == 0 {
		return 0
	}
	return live[len(live)-1].d
}

func (m *Manual) live() []*timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*timer, 0, 1)
	for _, t := range m.timers {
		if !t.stopped {
			out = append(out, t)
		}
	}
	return out
}
