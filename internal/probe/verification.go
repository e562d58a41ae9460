package probe

import (
	"fmt"

	"github.com/okian/pulsemap/internal/domain/frame"
	"github.com/okian/pulsemap/internal/domain/playback"
)

// verifySamples checks a polled run: the date index never moves backwards,
// every blend lies in [0, 1] and the run ends stopped on the last date with
// a full blend. It returns the number of distinct dates observed.
func verifySamples(samples []Sample, dates DatesResponse) (int, error) {
	if len(samples) == 0 {
		return 0, fmt.Errorf("%w: no samples", ErrVerification)
	}

	distinct := 0
	prev := -1
	for i, s := range samples {
		snap := s.Snapshot
		if snap.Blend < 0 || snap.Blend > FullBlend {
			return distinct, fmt.Errorf("%w: sample %d blend %.3f outside [0, 1]", ErrVerification, i, snap.Blend)
		}
		if snap.Index < prev {
			return distinct, fmt.Errorf("%w: sample %d went back from index %d to %d", ErrVerification, i, prev, snap.Index)
		}
		if snap.Index > prev {
			distinct++
			prev = snap.Index
		}
		if snap.Current < dates.First || snap.Current > dates.Last {
			return distinct, fmt.Errorf("%w: sample %d date %s outside [%s, %s]", ErrVerification, i, snap.Current, dates.First, dates.Last)
		}
	}

	final := samples[len(samples)-1].Snapshot
	if final.State != playback.Stopped {
		return distinct, fmt.Errorf("%w: run ended in state %s", ErrVerification, final.State)
	}
	if final.Current != dates.Last || final.Blend != FullBlend {
		return distinct, fmt.Errorf("%w: run ended at %s blend %.3f, want %s blend 1", ErrVerification, final.Current, final.Blend, dates.Last)
	}
	return distinct, nil
}

// verifyStream checks streamed frames never go back to an earlier snapshot
// and returns how many did.
func verifyStream(frames []frame.Frame) (int, error) {
	if len(frames) == 0 {
		return 0, fmt.Errorf("%w: no frames streamed", ErrVerification)
	}
	outOfOrder := 0
	for i := 1; i < len(frames); i++ {
		if frames[i].Version < frames[i-1].Version {
			outOfOrder++
		}
	}
	if outOfOrder > 0 {
		return outOfOrder, fmt.Errorf("%w: %d frames out of order", ErrVerification, outOfOrder)
	}
	return 0, nil
}

// verifyFrame checks a composed frame is internally consistent.
func verifyFrame(f frame.Frame) error {
	if f.Blend < 0 || f.Blend > FullBlend {
		return fmt.Errorf("%w: frame %s blend %.3f outside [0, 1]", ErrVerification, f.Date, f.Blend)
	}
	seen := make(map[string]struct{}, len(f.Attributes))
	for _, a := range f.Attributes {
		if _, dup := seen[a.EntityID]; dup {
			return fmt.Errorf("%w: frame %s lists %s twice", ErrVerification, f.Date, a.EntityID)
		}
		seen[a.EntityID] = struct{}{}
		if a.Elevation < 0 {
			return fmt.Errorf("%w: frame %s entity %s has negative elevation", ErrVerification, f.Date, a.EntityID)
		}
	}
	return nil
}
