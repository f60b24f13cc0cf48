package store

import (
	"context"
	"time"
)

// flightSuffix places flight markers in a namespace disjoint from cache
// entries for the same key.
const flightSuffix = "#flight"

// FlightKey returns the flight-marker key for a cache key.
func FlightKey(key string) string {
	return key + flightSuffix
}

// MarkInFlight records that a production for key is underway. The marker has
// its own TTL, sized to the worst-case production latency, so a crashed
// producer cannot leave other callers waiting past that bound. It is never
// cleared explicitly; it self-expires.
func MarkInFlight(ctx context.Context, s Store, key string, ttl time.Duration) error {
	return s.Set(ctx, FlightKey(key), "1", ttl)
}

// InFlight reports whether a production for key is currently marked as
// underway. The marker is advisory: multiple callers may still race to
// produce, and that is tolerated.
func InFlight(ctx context.Context, s Store, key string) (bool, error) {
	_, found, err := s.Get(ctx, FlightKey(key))
	return found, err
}
