package playback

import (
	"sync"
	"time"
)

// Timer is a repeating timer handle.
type Timer interface {
	// Stop cancels future callbacks. It must not block on a callback in
	// flight, since callers hold the controller lock.
	Stop()
}

// Clock schedules repeating callbacks.
type Clock interface {
	Every(d time.Duration, fn func()) Timer
}

// SystemClock returns a Clock backed by time.Ticker.
func SystemClock() Clock { return systemClock{} }

type systemClock struct{}

func (systemClock) Every(d time.Duration, fn func()) Timer {
	t := &tickerTimer{
		ticker: time.NewTicker(d),
		stop:   make(chan struct{}),
	}
	go t.run(fn)
	return t
}

type tickerTimer struct {
	ticker *time.Ticker
	stop   chan struct{}
	once   sync.Once
}

func (t *tickerTimer) run(fn func()) {
	for {
		select {
		case <-t.stop:
			return
		case <-t.ticker.C:
			fn()
		}
	}
}

func (t *tickerTimer) Stop() {
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.stop)
	})
}
