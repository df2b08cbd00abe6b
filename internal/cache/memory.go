package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps entries in process memory and sweeps expired ones
// in the background.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

// NewMemoryStore creates a MemoryStore sweeping every interval.
func NewMemoryStore(interval time.Duration) *MemoryStore {
	if interval <= 0 {
		interval = time.Minute
	}
	s := &MemoryStore{
		entries: make(map[string]Entry),
		now:     time.Now,
		done:    make(chan struct{}),
	}

	// Start background cleanup
	go s.cleanup(interval)

	return s
}

// Close stops the background cleanup goroutine.
func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *MemoryStore) Get(_ context.Context, fingerprint string) (Entry, error) {
	s.mu.RLock()
	e, ok := s.entries[fingerprint]
	s.mu.RUnlock()
	if !ok || !s.now().Before(e.ExpiresAt) {
		return Entry{}, ErrNotFound
	}
	e.Result = e.Result.Clone()
	return e, nil
}

func (s *MemoryStore) Put(_ context.Context, e Entry) error {
	e.Result = e.Result.Clone()
	s.mu.Lock()
	s.entries[e.Fingerprint] = e
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, fingerprint string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[fingerprint]
	delete(s.entries, fingerprint)
	return ok && s.now().Before(e.ExpiresAt), nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// sweep removes expired entries.
func (s *MemoryStore) sweep() {
	s.mu.Lock()
	now := s.now()
	for key, e := range s.entries {
		if !now.Before(e.ExpiresAt) {
			delete(s.entries, key)
		}
	}
	s.mu.Unlock()
}

func (s *MemoryStore) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.done:
			return
		}
	}
}
