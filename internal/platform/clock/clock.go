package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock abstracts time, tickers and delayed calls so timers stay deterministic in tests.
type Clock = clockwork.Clock

// System returns the wall clock.
func System() Clock {
	return clockwork.NewRealClock()
}

// UTC reads the clock and normalizes it to UTC, the form persisted records use.
func UTC(c Clock) time.Time {
	return c.Now().UTC()
}

// Millis converts a time to epoch milliseconds. The zero time maps to 0.
func Millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FromMillis is the inverse of Millis.
func FromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
