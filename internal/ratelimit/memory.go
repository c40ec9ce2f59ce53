package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultSweepInterval is how often expired in-process entries are evicted.
// Independent of the window duration.
const DefaultSweepInterval = 10 * time.Minute

// MemoryStore keeps entries in a process-local map. Unlike Redis there is no
// native key expiry, so a background sweep evicts entries whose lifetime has
// passed.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	stop    chan struct{}
	once    sync.Once
}

type memoryEntry struct {
	entry     Entry
	expiresAt time.Time
}

// NewMemoryStore creates an in-process store sweeping at the given interval.
// A non-positive interval uses DefaultSweepInterval.
func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		stop:    make(chan struct{}),
	}
	go s.sweepLoop(sweepInterval)
	return s
}

// Get retrieves the entry for key, or nil when absent or expired.
func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	me, ok := s.entries[key]
	if !ok || !me.expiresAt.After(time.Now()) {
		return nil, nil
	}
	entry := me.entry
	return &entry, nil
}

// SetWithTTL stores the entry; it expires ttl from now.
func (s *MemoryStore) SetWithTTL(_ context.Context, key string, entry *Entry, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{entry: *entry, expiresAt: time.Now().Add(ttl)}
	return nil
}

// Close stops the background sweep.
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

func (s *MemoryStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

func (s *MemoryStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, me := range s.entries {
		if !me.expiresAt.After(now) {
			delete(s.entries, key)
		}
	}
}

// len reports the number of stored entries, expired or not. Test helper.
func (s *MemoryStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
