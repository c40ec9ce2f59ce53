package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"article-inference/internal/logger"
)

func newTestLimiter(t *testing.T, primary Store) (*Limiter, *MemoryStore) {
	t.Helper()
	fallback := NewMemoryStore(time.Minute)
	t.Cleanup(func() { _ = fallback.Close() })
	log := logger.NewWithWriter("error", testWriter{})
	return New(primary, fallback, 5, time.Hour, log), fallback
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestCheckWindowArithmetic(t *testing.T) {
	l, _ := newTestLimiter(t, nil)
	ctx := context.Background()

	wantRemaining := []int{4, 3, 2, 1, 0}
	for i, want := range wantRemaining {
		d, err := l.Check(ctx, "subject-a")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, want, d.Remaining, "request %d remaining", i+1)
	}

	d, err := l.Check(ctx, "subject-a")
	require.NoError(t, err)
	assert.False(t, d.Allowed, "sixth request should be denied")
	assert.Equal(t, 0, d.Remaining)
	assert.True(t, d.ResetAt.After(time.Now()))
}

func TestCheckDenialLeavesCounterUnchanged(t *testing.T) {
	l, _ := newTestLimiter(t, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := l.Check(ctx, "s")
		require.NoError(t, err)
	}
	first, err := l.Check(ctx, "s")
	require.NoError(t, err)
	second, err := l.Check(ctx, "s")
	require.NoError(t, err)

	assert.False(t, first.Allowed)
	assert.False(t, second.Allowed)
	assert.Equal(t, first.ResetAt, second.ResetAt, "denied checks must not move the window")
}

func TestCheckWindowReset(t *testing.T) {
	l, _ := newTestLimiter(t, nil)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, err := l.Check(ctx, "s")
		require.NoError(t, err)
	}

	// Move the limiter's clock past the window boundary. Entries carry their
	// own ResetAt, so an elapsed window starts fresh rather than accumulating.
	l.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	d, err := l.Check(ctx, "s")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "first request after reset should be allowed")
	assert.Equal(t, 4, d.Remaining, "reset window starts from a fresh count")
}

// recordingStore remembers the TTL of the last write.
type recordingStore struct {
	entries map[string]*Entry
	lastTTL time.Duration
}

func (s *recordingStore) Get(_ context.Context, key string) (*Entry, error) {
	return s.entries[key], nil
}

func (s *recordingStore) SetWithTTL(_ context.Context, key string, entry *Entry, ttl time.Duration) error {
	s.entries[key] = entry
	s.lastTTL = ttl
	return nil
}

func TestCheckWritesTTLFromLimiterClock(t *testing.T) {
	store := &recordingStore{entries: make(map[string]*Entry)}
	l, _ := newTestLimiter(t, store)
	ctx := context.Background()

	// Pin the clock far from wall time so any wall-clock TTL arithmetic
	// would be visibly wrong.
	base := time.Now().Add(24 * time.Hour)
	l.now = func() time.Time { return base }

	_, err := l.Check(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, store.lastTTL, "fresh window writes the full window as TTL")

	l.now = func() time.Time { return base.Add(40 * time.Minute) }
	_, err = l.Check(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, 20*time.Minute, store.lastTTL, "in-window write carries the remaining window as TTL")
}

func TestCheckSubjectsIndependent(t *testing.T) {
	l, _ := newTestLimiter(t, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := l.Check(ctx, "busy")
		require.NoError(t, err)
	}
	d, err := l.Check(ctx, "quiet")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 4, d.Remaining)
}

// failingStore errors on every operation, standing in for an unreachable
// distributed backend.
type failingStore struct{}

func (failingStore) Get(context.Context, string) (*Entry, error) {
	return nil, errors.New("connection refused")
}

func (failingStore) SetWithTTL(context.Context, string, *Entry, time.Duration) error {
	return errors.New("connection refused")
}

func TestCheckFailsOverToFallback(t *testing.T) {
	l, fallback := newTestLimiter(t, failingStore{})
	ctx := context.Background()

	d, err := l.Check(ctx, "subject")
	require.NoError(t, err, "primary store failure must not reject the request")
	assert.True(t, d.Allowed)
	assert.Equal(t, 4, d.Remaining)

	// The entry landed in the fallback store.
	entry, err := fallback.Get(ctx, "subject")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 1, entry.Count)
}

func TestCheckDefaults(t *testing.T) {
	fallback := NewMemoryStore(time.Minute)
	defer fallback.Close()
	l := New(nil, fallback, 0, 0, logger.NewWithWriter("error", testWriter{}))

	assert.Equal(t, DefaultCeiling, l.Ceiling())
	assert.Equal(t, DefaultWindow, l.window)
}
