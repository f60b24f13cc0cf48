package cacheaside

import (
	"math"
	"time"
)

// IntervalFunc returns the poll interval before the given attempt.
// Attempts are 1-based.
type IntervalFunc func(attempt int) time.Duration

// FixedInterval returns the same interval for every attempt.
func FixedInterval(d time.Duration) IntervalFunc {
	return func(int) time.Duration {
		return d
	}
}

// ExponentialInterval returns interval(n) = min(max, base*coefficient^(n-1)).
// With base=100ms, max=1s, coefficient=2 the sequence is 100, 200, 400, 800,
// 1000, 1000, ... milliseconds.
func ExponentialInterval(base time.Duration, max time.Duration, coefficient float64) IntervalFunc {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		interval := float64(base) * math.Pow(coefficient, float64(attempt-1))
		if interval > float64(max) {
			return max
		}
		return time.Duration(interval)
	}
}
