// Package cacheaside is the entry point adapters call: given a request or a
// canonical key and a produce function, it serves from cache, waits on a
// concurrent producer's result, or computes and stores the value itself.
//
// Coalescing is advisory. The flight marker is not a lock: there is no
// ownership token and no release guarantee, and concurrent callers may still
// race to produce the same value. The layer shortens duplicate work rather
// than strictly excluding it; the backing store's last write wins.
package cacheaside

import (
	"context"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/adapterkit/go-cachekit/cachekey"
	"github.com/adapterkit/go-cachekit/logger"
	"github.com/adapterkit/go-cachekit/store"
)

// Defaults for the wait loop and flight markers.
const (
	// DefaultRetries is the poll budget while waiting on another producer.
	DefaultRetries = 5
	// DefaultFlightTTL bounds how long a crashed producer can keep other
	// callers waiting. Size it to the worst-case production latency.
	DefaultFlightTTL = 10 * time.Second
)

// DefaultInterval is the canonical backoff between polls.
func DefaultInterval() IntervalFunc {
	return ExponentialInterval(100*time.Millisecond, time.Second, 2)
}

// ProduceFunc computes the value on a cache miss. It represents the adapter's
// actual upstream work (API fetch, contract read). Cancellation and timeout
// of the production itself are the producer's concern; the orchestrator only
// bounds store calls.
type ProduceFunc func(ctx context.Context) (string, error)

// Client orchestrates cache-aside fetches over a shared backing store. Safe
// for concurrent use by any number of in-flight fetches.
type Client struct {
	store     store.Store
	log       logger.Logger
	keyMode   cachekey.Mode
	keyOpts   cachekey.Options
	entryTTL  time.Duration
	flightTTL time.Duration
	retries   int
	interval  IntervalFunc
}

// Option configures a Client.
type Option func(*Client)

// WithEntryTTL sets the TTL for stored values. Zero delegates to the store's
// configured default.
func WithEntryTTL(d time.Duration) Option {
	return func(c *Client) { c.entryTTL = d }
}

// WithFlightTTL sets the flight-marker TTL, independent of the entry TTL.
func WithFlightTTL(d time.Duration) Option {
	return func(c *Client) { c.flightTTL = d }
}

// WithRetries sets the poll budget for waiting on a concurrent producer.
func WithRetries(n int) Option {
	return func(c *Client) { c.retries = n }
}

// WithInterval sets the poll backoff function.
func WithInterval(fn IntervalFunc) Option {
	return func(c *Client) { c.interval = fn }
}

// WithKeyMode sets how request payloads are filtered before hashing.
func WithKeyMode(mode cachekey.Mode) Option {
	return func(c *Client) { c.keyMode = mode }
}

// WithKeyOptions sets the canonicalizer field lists.
func WithKeyOptions(opts cachekey.Options) Option {
	return func(c *Client) { c.keyOpts = opts }
}

// fetchSettings is the tuning for a single fetch, seeded from the client.
type fetchSettings struct {
	entryTTL  time.Duration
	flightTTL time.Duration
	retries   int
	interval  IntervalFunc
}

// FetchOption overrides the client's tuning for one call.
type FetchOption func(*fetchSettings)

// EntryTTL overrides the stored value's TTL for this call.
func EntryTTL(d time.Duration) FetchOption {
	return func(fs *fetchSettings) { fs.entryTTL = d }
}

// FlightTTL overrides the flight-marker TTL for this call.
func FlightTTL(d time.Duration) FetchOption {
	return func(fs *fetchSettings) { fs.flightTTL = d }
}

// Retries overrides the poll budget for this call.
func Retries(n int) FetchOption {
	return func(fs *fetchSettings) { fs.retries = n }
}

// Interval overrides the poll backoff for this call.
func Interval(fn IntervalFunc) FetchOption {
	return func(fs *fetchSettings) { fs.interval = fn }
}

func (c *Client) settings(opts []FetchOption) fetchSettings {
	fs := fetchSettings{
		entryTTL:  c.entryTTL,
		flightTTL: c.flightTTL,
		retries:   c.retries,
		interval:  c.interval,
	}
	for _, opt := range opts {
		opt(&fs)
	}
	return fs
}

// New returns a Client over the given store.
func New(s store.Store, log logger.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.NewConsoleLogger()
	}
	c := &Client{
		store:     s,
		log:       log.WithPrefix("cache"),
		keyMode:   cachekey.ModeExclude,
		keyOpts:   cachekey.DefaultOptions(),
		flightTTL: DefaultFlightTTL,
		retries:   DefaultRetries,
		interval:  DefaultInterval(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the value for key, serving from cache when possible.
//
// Probe: a cache hit returns immediately. Check flight: when another producer
// is marked in flight, the call waits on its result with the configured
// budget and backoff. Produce: otherwise (or when the wait comes up empty)
// this caller marks the key in flight, produces the value, stores it, and
// returns it.
//
// A produce failure comes back tagged store.KindProduction, with the
// original cause reachable through errors.Is and errors.As. The flight
// marker is deliberately not cleared on that path; letting it expire bounds
// how long other waiters are held by the failed attempt. A store write
// failure after a successful produce is logged and swallowed, so the caller
// still gets the value it paid for.
//
// Options override the client's tuning for this call only.
func (c *Client) Fetch(ctx context.Context, key string, produce ProduceFunc, opts ...FetchOption) (string, error) {
	fs := c.settings(opts)

	// Probe
	val, found, err := c.store.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if found {
		c.log.Trace("cache hit for %s", key)
		return val, nil
	}

	// Check flight
	producing, err := store.InFlight(ctx, c.store, key)
	if err != nil {
		return "", err
	}
	if producing {
		// Wait
		c.log.Trace("coalescing on in-flight production for %s", key)
		val, found, err = AwaitProduction(ctx,
			func(ctx context.Context) (string, bool, error) {
				return c.store.Get(ctx, key)
			},
			func(ctx context.Context) (bool, error) {
				return store.InFlight(ctx, c.store, key)
			},
			fs.retries, fs.interval)
		if err != nil {
			return "", err
		}
		if found {
			return val, nil
		}
	}

	// Produce
	if err := store.MarkInFlight(ctx, c.store, key, fs.flightTTL); err != nil {
		// Losing the marker only loses coalescing, not correctness.
		c.log.Warn("failed to set flight marker for %s: %s", key, err)
	}
	val, err = produce(ctx)
	if err != nil {
		return "", &store.Error{Op: "produce", Kind: store.KindProduction, Key: key, Err: err}
	}
	if err := c.store.Set(ctx, key, val, fs.entryTTL); err != nil {
		c.log.Warn("failed to store produced value for %s: %s", key, err)
	}
	return val, nil
}

// FetchRequest derives the canonical key for a request payload and fetches
// through it. Two payloads differing only in field order or volatile fields
// coalesce onto the same key.
func (c *Client) FetchRequest(ctx context.Context, payload any, produce ProduceFunc, opts ...FetchOption) (string, error) {
	key, err := c.Key(payload)
	if err != nil {
		return "", &store.Error{Op: "derive", Kind: store.KindKeyDerivation, Err: err}
	}
	return c.Fetch(ctx, key, produce, opts...)
}

// Key derives the canonical cache key for a request payload using the
// client's configured mode and field lists.
func (c *Client) Key(payload any) (string, error) {
	return cachekey.Canonical(payload, c.keyMode, c.keyOpts)
}

// FetchTyped is a typed wrapper over Client.Fetch: the produced value is
// msgpack-encoded for storage and cache hits are decoded back into T.
func FetchTyped[T any](ctx context.Context, c *Client, key string, produce func(ctx context.Context) (T, error), opts ...FetchOption) (T, error) {
	var zero T
	raw, err := c.Fetch(ctx, key, func(ctx context.Context) (string, error) {
		val, err := produce(ctx)
		if err != nil {
			return "", err
		}
		data, err := msgpack.Marshal(val)
		if err != nil {
			return "", fmt.Errorf("cacheaside: failed to marshal produced value for %q: %w", key, err)
		}
		return string(data), nil
	}, opts...)
	if err != nil {
		return zero, err
	}
	var out T
	if err := msgpack.Unmarshal([]byte(raw), &out); err != nil {
		return zero, fmt.Errorf("cacheaside: failed to unmarshal cached value for %q: %w", key, err)
	}
	return out, nil
}
