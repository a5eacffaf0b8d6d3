package ports

import "time"

// Clock abstracts wall time so window boundaries and expirations are testable.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
