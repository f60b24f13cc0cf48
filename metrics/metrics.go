// Package metrics defines the counter sink the cache layer reports into.
//
// The backing-store client increments a counter for every operation outcome
// (success, timeout, failure) and for every reconnect attempt. These counters
// are the primary signal for tuning the per-call timeout, so implementations
// must be cheap and safe for concurrent use.
package metrics

import (
	"sync"
	"sync/atomic"
)

// Store operation outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeTimeout = "timeout"
	OutcomeFailure = "failure"
)

// Observer receives operational events from the cache layer.
type Observer interface {
	// IncStoreOp records a backing-store call outcome, labeled by the
	// operation name (get, set, delete, ttl) and outcome kind.
	IncStoreOp(op string, outcome string)
	// IncReconnect records a reconnect attempt on the store connection.
	IncReconnect()
}

type nopObserver struct{}

func (nopObserver) IncStoreOp(string, string) {}
func (nopObserver) IncReconnect()             {}

// Nop returns an Observer that discards all events.
func Nop() Observer {
	return nopObserver{}
}

// Counters is an in-process Observer backed by atomic counters.
type Counters struct {
	mu         sync.RWMutex
	storeOps   map[string]*int64
	reconnects int64
}

var _ Observer = (*Counters)(nil)

// NewCounters returns an empty Counters observer.
func NewCounters() *Counters {
	return &Counters{
		storeOps: make(map[string]*int64),
	}
}

func (c *Counters) IncStoreOp(op string, outcome string) {
	key := op + ":" + outcome
	c.mu.RLock()
	counter, ok := c.storeOps[key]
	c.mu.RUnlock()
	if !ok {
		c.mu.Lock()
		counter, ok = c.storeOps[key]
		if !ok {
			counter = new(int64)
			c.storeOps[key] = counter
		}
		c.mu.Unlock()
	}
	atomic.AddInt64(counter, 1)
}

func (c *Counters) IncReconnect() {
	atomic.AddInt64(&c.reconnects, 1)
}

// StoreOp returns the recorded count for an (operation, outcome) pair.
func (c *Counters) StoreOp(op string, outcome string) int64 {
	c.mu.RLock()
	counter, ok := c.storeOps[op+":"+outcome]
	c.mu.RUnlock()
	if !ok {
		return 0
	}
	return atomic.LoadInt64(counter)
}

// Reconnects returns the recorded reconnect attempt count.
func (c *Counters) Reconnects() int64 {
	return atomic.LoadInt64(&c.reconnects)
}

// Snapshot returns all store-op counters keyed by "op:outcome".
func (c *Counters) Snapshot() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]int64, len(c.storeOps))
	for key, counter := range c.storeOps {
		out[key] = atomic.LoadInt64(counter)
	}
	return out
}
