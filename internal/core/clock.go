package core

import "time"

// Clock abstracts wall-clock access so the builders stay deterministic
// under test. Every "current year" branch in the engine reads through it.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant. Test helper.
type FixedClock struct {
	Instant time.Time
}

func (c FixedClock) Now() time.Time { return c.Instant }

// FixedAt is shorthand for a FixedClock pinned to midnight UTC of the
// given day.
func FixedAt(year, month, day int) FixedClock {
	return FixedClock{Instant: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}
