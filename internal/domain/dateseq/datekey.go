// Package dateseq holds day-granularity date keys and the ordered sequence
// of dates that playback steps through.
package dateseq

import (
	"fmt"
	"time"
)

// Layout is the canonical text form of a DateKey.
const Layout = "2006-01-02"

const day = 24 * time.Hour

// DateKey is a calendar day counted from 1970-01-01 UTC. Keys compare with
// the ordinary integer operators.
type DateKey int64

// Parse reads a YYYY-MM-DD string.
func Parse(s string) (DateKey, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return FromTime(t), nil
}

// MustParse is Parse for literals in tests and defaults.
func MustParse(s string) DateKey {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// FromTime truncates t to its UTC calendar day.
func FromTime(t time.Time) DateKey {
	y, m, dd := t.UTC().Date()
	midnight := time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
	return DateKey(midnight.Unix() / int64(day/time.Second))
}

// Time returns midnight UTC of the day.
func (d DateKey) Time() time.Time {
	return time.Unix(int64(d)*int64(day/time.Second), 0).UTC()
}

// AddDays returns the key n days later (earlier when n is negative).
func (d DateKey) AddDays(n int) DateKey {
	return d + DateKey(n)
}

func (d DateKey) String() string {
	return d.Time().Format(Layout)
}

// MarshalText encodes the key as YYYY-MM-DD.
func (d DateKey) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes a YYYY-MM-DD key.
func (d *DateKey) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
