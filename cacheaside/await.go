package cacheaside

import (
	"context"
	"time"
)

// GetFunc probes the store for a value. The bool reports presence.
type GetFunc func(ctx context.Context) (string, bool, error)

// InFlightFunc reports whether another producer is currently working on the
// value.
type InFlightFunc func(ctx context.Context) (bool, error)

// AwaitProduction polls for a value another caller is producing. Each
// iteration probes the store; on a hit the value is returned immediately. If
// no producer is marked in flight the wait ends immediately with found=false
// so the caller can become the producer itself. Otherwise the caller's task
// suspends for interval(attempt) and the retry budget is decremented.
//
// An exhausted budget returns found=false without error: falling through to
// production is the expected outcome, not a failure. The total wait is
// bounded by retries times the largest interval.
func AwaitProduction(ctx context.Context, get GetFunc, inFlight InFlightFunc, retries int, interval IntervalFunc) (string, bool, error) {
	for attempt := 1; retries > 0; attempt++ {
		val, found, err := get(ctx)
		if err != nil {
			return "", false, err
		}
		if found {
			return val, true, nil
		}

		producing, err := inFlight(ctx)
		if err != nil {
			return "", false, err
		}
		if !producing {
			return "", false, nil
		}

		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(interval(attempt)):
		}
		retries--
	}
	return "", false, nil
}
