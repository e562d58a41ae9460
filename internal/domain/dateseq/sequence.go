package dateseq

import (
	"fmt"
	"iter"
)

// Sequence is the immutable, strictly increasing run of days from start to
// end inclusive. Positions are computed arithmetically, so indexing never
// needs the dates materialized.
type Sequence struct {
	start DateKey
	end   DateKey
}

// Build creates the sequence [start, end]. It fails with ErrInvalidRange
// when start is after end.
func Build(start, end DateKey) (*Sequence, error) {
	if start > end {
		return nil, fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange, start, end)
	}
	return &Sequence{start: start, end: end}, nil
}

// ParseRange parses both bounds and builds the sequence.
func ParseRange(start, end string) (*Sequence, error) {
	s, err := Parse(start)
	if err != nil {
		return nil, err
	}
	e, err := Parse(end)
	if err != nil {
		return nil, err
	}
	return Build(s, e)
}

// Len returns the number of days, end - start + 1.
func (s *Sequence) Len() int { return int(s.end-s.start) + 1 }

// First returns the first day.
func (s *Sequence) First() DateKey { return s.start }

// Last returns the last day.
func (s *Sequence) Last() DateKey { return s.end }

// At returns the day at position i.
func (s *Sequence) At(i int) (DateKey, bool) {
	if i < 0 || i >= s.Len() {
		return 0, false
	}
	return s.start.AddDays(i), true
}

// IndexOf returns the position of d.
func (s *Sequence) IndexOf(d DateKey) (int, bool) {
	if !s.Contains(d) {
		return -1, false
	}
	return int(d - s.start), true
}

// Contains reports whether d is one of the days.
func (s *Sequence) Contains(d DateKey) bool {
	return d >= s.start && d <= s.end
}

// Next returns the day after d, or false when d is the last day or not in
// the sequence.
func (s *Sequence) Next(d DateKey) (DateKey, bool) {
	if !s.Contains(d) || d == s.end {
		return 0, false
	}
	return d.AddDays(1), true
}

// All yields every day in order. Each call starts a fresh pass.
func (s *Sequence) All() iter.Seq[DateKey] {
	return func(yield func(DateKey) bool) {
		for d := s.start; d <= s.end; d++ {
			if !yield(d) {
				return
			}
		}
	}
}

// Dates materializes the sequence.
func (s *Sequence) Dates() []DateKey {
	out := make([]DateKey, 0, s.Len())
	for d := range s.All() {
		out = append(out, d)
	}
	return out
}
