// Package store wraps the remote key-value backing store the cache layer
// coordinates through. Every call is bounded by a per-call timeout and every
// outcome is reported to a metrics observer, since those counters are the only
// operational signal for tuning the timeout.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Store is a remote key-value store with millisecond expiry semantics.
// Any backend compatible with the Redis command model (GET, SET PX, DEL,
// PTTL) satisfies this interface.
type Store interface {
	// Get returns the value for key. The bool reports whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores val under key with the given TTL. A ttl <= 0 uses the
	// configured default entry TTL.
	Set(ctx context.Context, key string, val string, ttl time.Duration) error
	// Delete removes key and returns the number of keys removed.
	Delete(ctx context.Context, key string) (int64, error)
	// TTL returns the remaining time to live for key. Negative durations
	// follow Redis PTTL semantics (-1 no expiry, -2 missing key).
	TTL(ctx context.Context, key string) (time.Duration, error)
	// Close shuts the store down. Idempotent.
	Close() error
}

// GetTyped retrieves a msgpack-serialized value and decodes it into T.
func GetTyped[T any](ctx context.Context, s Store, key string) (T, bool, error) {
	var zero T
	val, found, err := s.Get(ctx, key)
	if err != nil || !found {
		return zero, false, err
	}
	var out T
	if err := msgpack.Unmarshal([]byte(val), &out); err != nil {
		return zero, false, fmt.Errorf("store: failed to unmarshal value for %q: %w", key, err)
	}
	return out, true, nil
}

// SetTyped encodes val with msgpack and stores it under key.
func SetTyped[T any](ctx context.Context, s Store, key string, val T, ttl time.Duration) error {
	data, err := msgpack.Marshal(val)
	if err != nil {
		return fmt.Errorf("store: failed to marshal value for %q: %w", key, err)
	}
	return s.Set(ctx, key, string(data), ttl)
}
