package store

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	val     string
	expires time.Time
}

type inMemoryStore struct {
	ctx        context.Context
	cancel     context.CancelFunc
	entries    map[string]*entry
	mutex      sync.Mutex
	waitGroup  sync.WaitGroup
	once       sync.Once
	defaultTTL time.Duration
}

var _ Store = (*inMemoryStore)(nil)

// NewInMemory returns an in-process Store with the same TTL semantics as the
// Redis implementation. Intended for tests and local development; state is
// not shared across processes.
func NewInMemory(parent context.Context) Store {
	ctx, cancel := context.WithCancel(parent)
	s := &inMemoryStore{
		ctx:        ctx,
		cancel:     cancel,
		entries:    make(map[string]*entry),
		defaultTTL: DefaultEntryTTL,
	}
	s.waitGroup.Add(1)
	go s.run()
	return s
}

func (s *inMemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return "", false, nil
	}
	if e.expires.Before(time.Now()) {
		delete(s.entries, key)
		return "", false, nil
	}
	return e.val, true, nil
}

func (s *inMemoryStore) Set(_ context.Context, key string, val string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	s.mutex.Lock()
	s.entries[key] = &entry{val: val, expires: time.Now().Add(ttl)}
	s.mutex.Unlock()
	return nil
}

func (s *inMemoryStore) Delete(_ context.Context, key string) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.entries[key]; !ok {
		return 0, nil
	}
	delete(s.entries, key)
	return 1, nil
}

func (s *inMemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	e, ok := s.entries[key]
	if !ok || e.expires.Before(time.Now()) {
		return -2 * time.Millisecond, nil
	}
	return time.Until(e.expires), nil
}

func (s *inMemoryStore) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.waitGroup.Wait()
	})
	return nil
}

func (s *inMemoryStore) run() {
	defer s.waitGroup.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			s.mutex.Lock()
			for key, e := range s.entries {
				if e.expires.Before(now) {
					delete(s.entries, key)
				}
			}
			s.mutex.Unlock()
		}
	}
}
