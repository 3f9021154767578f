package lifecycle

import "time"

// Clock supplies the operation time. It must never move backwards.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// secondOf normalizes t to the second-resolution UTC instants streams use.
func secondOf(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
