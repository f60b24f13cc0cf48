package store

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout indicates a store call exceeded its per-call budget. The
	// caller is never blocked past the timeout; it may retry or fall through
	// to producing the value directly.
	ErrTimeout = errors.New("store: operation timed out")
	// ErrQueueFull indicates the configured bound on concurrently queued
	// commands was reached. The command is rejected rather than queued
	// unboundedly.
	ErrQueueFull = errors.New("store: too many queued commands")
	// ErrClosed indicates the store client has been closed.
	ErrClosed = errors.New("store: closed")
)

// Kind classifies a cache-layer failure so callers can branch without
// matching error strings.
type Kind int

const (
	// KindStore covers backing-store failures: command errors, queue
	// rejection, use after close.
	KindStore Kind = iota
	// KindTimeout marks a call that exceeded its per-call budget.
	KindTimeout
	// KindProduction marks a failure of the caller's produce function.
	KindProduction
	// KindKeyDerivation marks a payload that could not be canonicalized.
	KindKeyDerivation
)

func (k Kind) String() string {
	switch k {
	case KindStore:
		return "store"
	case KindTimeout:
		return "timeout"
	case KindProduction:
		return "production"
	case KindKeyDerivation:
		return "key derivation"
	}
	return "unknown"
}

// Error tags a failure with the operation and kind. The underlying cause
// stays reachable through errors.Is and errors.As.
type Error struct {
	Op   string
	Kind Kind
	Key  string
	Err  error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("store: %s %q: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is maps the timeout kind onto ErrTimeout so the sentinel matches even
// though Err holds the raw cause (context deadline, net timeout).
func (e *Error) Is(target error) bool {
	return target == ErrTimeout && e.Kind == KindTimeout
}

// IsTimeout reports whether err was caused by a per-call timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsStoreError reports whether err is a backing-store failure, as opposed
// to a production or key derivation failure.
func IsStoreError(err error) bool {
	return isKind(err, KindStore) || isKind(err, KindTimeout)
}

// IsProduction reports whether err came from the caller's produce function.
func IsProduction(err error) bool {
	return isKind(err, KindProduction)
}

// IsKeyDerivation reports whether err came from canonicalizing a payload.
func IsKeyDerivation(err error) bool {
	return isKind(err, KindKeyDerivation)
}

func isKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}
