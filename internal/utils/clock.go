package utils

import "time"

// Clock abstracts time.Now so components that stamp items and indexes can
// be tested against a fixed time source.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// NowMillis returns the clock's current time in epoch milliseconds, the
// unit used by item timestamps and remote indexes.
func NowMillis(c Clock) int64 {
	return c.Now().UnixMilli()
}

// FixedClock always reports the same instant. Test helper.
type FixedClock struct {
	T time.Time
}

func (f FixedClock) Now() time.Time { return f.T }
