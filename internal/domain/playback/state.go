package playback

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/pulsemap/internal/domain/dateseq"
)

// State is the controller's run state.
type State int

// Controller states.
const (
	Stopped State = iota
	Running
	Paused
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// MarshalText encodes the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "stopped":
		*s = Stopped
	case "running":
		*s = Running
	case "paused":
		*s = Paused
	default:
		return fmt.Errorf("unknown playback state %q", b)
	}
	return nil
}

// EndPolicy decides what happens after the last date finishes blending.
type EndPolicy int

// End policies.
const (
	// EndStop transitions to Stopped and reports completion.
	EndStop EndPolicy = iota
	// EndLoop rewinds to the first date and keeps running.
	EndLoop
)

// ParseEndPolicy accepts "stop" or "loop" (case-insensitive).
func ParseEndPolicy(s string) (EndPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "stop":
		return EndStop, nil
	case "loop":
		return EndLoop, nil
	default:
		return EndStop, fmt.Errorf("unknown end policy: %s", s)
	}
}

func (p EndPolicy) String() string {
	if p == EndLoop {
		return "loop"
	}
	return "stop"
}

// Snapshot is a consistent copy of the animation state.
type Snapshot struct {
	State          State           `json:"state"`
	Running        bool            `json:"running"`
	Current        dateseq.DateKey `json:"current"`
	Previous       dateseq.DateKey `json:"previous"`
	Index          int             `json:"index"`
	Blend          float64         `json:"blend"`
	Step           int             `json:"step"`
	Steps          int             `json:"steps"`
	TickInterval   time.Duration   `json:"-"`
	TickIntervalMS int64           `json:"tick_interval_ms"`
	Generation     uint64          `json:"generation"`
	// Version orders snapshots by commit; it never decreases.
	Version        uint64          `json:"version"`
}

// EventKind classifies controller notifications.
type EventKind int

// Event kinds.
const (
	EventTick EventKind = iota
	EventAdvanced
	EventCompleted
	EventLooped
	EventStateChanged
	EventSeeked
	EventRateChanged
)

func (k EventKind) String() string {
	switch k {
	case EventTick:
		return "tick"
	case EventAdvanced:
		return "advanced"
	case EventCompleted:
		return "completed"
	case EventLooped:
		return "looped"
	case EventStateChanged:
		return "state_changed"
	case EventSeeked:
		return "seeked"
	case EventRateChanged:
		return "rate_changed"
	default:
		return "unknown"
	}
}

// Event is delivered to listeners after the state it describes is
// committed. From is the state before the change.
type Event struct {
	Kind     EventKind
	From     State
	Snapshot Snapshot
}

// Listener receives controller events.
type Listener func(Event)
