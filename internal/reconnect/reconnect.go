package reconnect

import (
	"math"
	"time"
)

const (
	// DefaultBase is the delay before the first reconnect attempt.
	DefaultBase = 5 * time.Second
	// DefaultCeiling caps the delay between reconnect attempts.
	DefaultCeiling = 60 * time.Second
)

// Next returns the delay that follows prev: twice prev, clamped to
// [base, ceiling]. A non-positive ceiling disables the cap.
func Next(prev, base, ceiling time.Duration) time.Duration {
	next := prev * 2
	if next < prev {
		// overflow
		next = time.Duration(math.MaxInt64)
	}
	return clamp(next, base, ceiling)
}

// Delay returns the backoff duration for the given zero-based attempt:
// base * 2^attempt, clamped to ceiling.
func Delay(attempt int, base, ceiling time.Duration) time.Duration {
	d := clamp(base, base, ceiling)
	for i := 0; i < attempt; i++ {
		d = Next(d, base, ceiling)
		if ceiling > 0 && d == ceiling {
			break
		}
	}
	return d
}

func clamp(d, base, ceiling time.Duration) time.Duration {
	if d < base {
		d = base
	}
	if ceiling > 0 && d > ceiling {
		d = ceiling
	}
	return d
}
