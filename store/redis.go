package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/semaphore"

	"github.com/adapterkit/go-cachekit/logger"
	"github.com/adapterkit/go-cachekit/metrics"
)

// ConnState is the lifecycle state of the store connection.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateReady
	StateReconnecting
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// RedisStore is the Redis-backed Store implementation.
type RedisStore struct {
	client    *redis.Client
	cfg       Config
	log       logger.Logger
	obs       metrics.Observer
	sem       *semaphore.Weighted
	state     atomic.Int32
	closeOnce sync.Once
	closeErr  error
}

var _ Store = (*RedisStore)(nil)

// NewRedis returns a Store backed by Redis. The connection is established
// lazily; a broken connection is re-dialed with a capped backoff rather than
// failing permanently. Individual calls are never retried past their timeout.
func NewRedis(cfg Config, log logger.Logger, obs metrics.Observer) (*RedisStore, error) {
	cfg = cfg.withDefaults()
	if log == nil {
		log = logger.NewConsoleLogger()
	}
	if obs == nil {
		obs = metrics.Nop()
	}

	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("store: invalid url: %w", err)
		}
		opts = parsed
	} else {
		network, addr := cfg.addr()
		opts = &redis.Options{
			Network:  network,
			Addr:     addr,
			Password: cfg.Password,
		}
	}
	opts.DialTimeout = cfg.ConnectTimeout
	// Commands are never retried by the client; a failure surfaces to the
	// caller on the first attempt. Redials after a failed dial back off up
	// to the configured cooldown (see connTracker).
	opts.MaxRetries = -1

	s := &RedisStore{
		cfg: cfg,
		log: log.WithPrefix("store"),
		obs: obs,
		sem: semaphore.NewWeighted(int64(cfg.MaxQueued)),
	}
	s.state.Store(int32(StateConnecting))

	s.client = redis.NewClient(opts)
	s.client.AddHook(&connTracker{s: s})

	s.log.Debug("store client created: %+v", cfg.Redacted())
	return s, nil
}

// State returns the current connection state.
func (s *RedisStore) State() ConnState {
	return ConnState(s.state.Load())
}

func (s *RedisStore) setState(next ConnState) {
	prev := ConnState(s.state.Swap(int32(next)))
	if prev != next {
		s.log.Info("connection state %s -> %s", prev, next)
	}
}

// connTracker observes dial outcomes to drive the connection state machine,
// the reconnect counter, and the redial cooldown.
type connTracker struct {
	s        *RedisStore
	mu       sync.Mutex
	failures int
	notUntil time.Time
}

var _ redis.Hook = (*connTracker)(nil)

// redialDelay doubles per consecutive dial failure, capped at max.
func redialDelay(failures int, max time.Duration) time.Duration {
	d := 50 * time.Millisecond << uint(failures-1)
	if d > max || d <= 0 {
		return max
	}
	return d
}

func (h *connTracker) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if h.s.State() == StateClosed {
			return nil, ErrClosed
		}
		h.mu.Lock()
		wait := time.Until(h.notUntil)
		h.mu.Unlock()
		if wait > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
		conn, err := next(ctx, network, addr)
		if err != nil {
			h.mu.Lock()
			h.failures++
			h.notUntil = time.Now().Add(redialDelay(h.failures, h.s.cfg.MaxCooldown))
			h.mu.Unlock()
			h.s.setState(StateReconnecting)
			h.s.obs.IncReconnect()
			h.s.log.Warn("dial %s %s failed: %s", network, addr, err)
			return nil, err
		}
		h.mu.Lock()
		h.failures = 0
		h.notUntil = time.Time{}
		h.mu.Unlock()
		h.s.setState(StateReady)
		return conn, nil
	}
}

func (h *connTracker) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return next
}

func (h *connTracker) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

// do runs a single store command under the admission bound and the per-call
// timeout, classifying the outcome for the observer and tagging failures
// with their kind.
func (s *RedisStore) do(ctx context.Context, op, key string, fn func(ctx context.Context) error) error {
	if s.State() == StateClosed {
		s.obs.IncStoreOp(op, metrics.OutcomeFailure)
		return &Error{Op: op, Kind: KindStore, Key: key, Err: ErrClosed}
	}
	if !s.sem.TryAcquire(1) {
		s.obs.IncStoreOp(op, metrics.OutcomeFailure)
		return &Error{Op: op, Kind: KindStore, Key: key, Err: ErrQueueFull}
	}
	defer s.sem.Release(1)

	qctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	err := fn(qctx)
	switch {
	case err == nil:
		s.obs.IncStoreOp(op, metrics.OutcomeSuccess)
		return nil
	case isTimeoutErr(err):
		s.obs.IncStoreOp(op, metrics.OutcomeTimeout)
		s.log.Warn("%s timed out after %s", op, s.cfg.CallTimeout)
		return &Error{Op: op, Kind: KindTimeout, Key: key, Err: err}
	default:
		s.obs.IncStoreOp(op, metrics.OutcomeFailure)
		return &Error{Op: op, Kind: KindStore, Key: key, Err: err}
	}
}

func isTimeoutErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	var val string
	var found bool
	err := s.do(ctx, "get", key, func(ctx context.Context) error {
		res, err := s.client.Get(ctx, key).Result()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return err
		}
		val = res
		found = true
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return val, found, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, val string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}
	return s.do(ctx, "set", key, func(ctx context.Context) error {
		return s.client.Set(ctx, key, val, ttl).Err()
	})
}

func (s *RedisStore) Delete(ctx context.Context, key string) (int64, error) {
	var count int64
	err := s.do(ctx, "delete", key, func(ctx context.Context) error {
		res, err := s.client.Del(ctx, key).Result()
		if err != nil {
			return err
		}
		count = res
		return nil
	})
	return count, err
}

func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	var remaining time.Duration
	err := s.do(ctx, "ttl", key, func(ctx context.Context) error {
		res, err := s.client.PTTL(ctx, key).Result()
		if err != nil {
			return err
		}
		remaining = res
		return nil
	})
	return remaining, err
}

// Close shuts the client down and releases the connection. Safe to call
// multiple times.
func (s *RedisStore) Close() error {
	s.closeOnce.Do(func() {
		s.setState(StateClosed)
		s.closeErr = s.client.Close()
	})
	return s.closeErr
}
