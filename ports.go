package tagarena

import "time"

// Clock abstracts time for deterministic tests. All disable-expiry,
// liveness, and dedup comparisons go through it.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
