package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	defer s.Close()
	ctx := context.Background()

	entry, err := s.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry != nil {
		t.Fatalf("expected miss, got %+v", entry)
	}

	reset := time.Now().Add(time.Hour)
	if err := s.SetWithTTL(ctx, "k", &Entry{Count: 3, ResetAt: reset}, time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Count != 3 || !got.ResetAt.Equal(reset) {
		t.Errorf("got %+v", got)
	}

	// Returned entries are copies; mutating one must not touch the store.
	got.Count = 99
	again, _ := s.Get(ctx, "k")
	if again.Count != 3 {
		t.Errorf("store entry mutated through returned copy: %d", again.Count)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	defer s.Close()
	ctx := context.Background()

	if err := s.SetWithTTL(ctx, "k", &Entry{Count: 1, ResetAt: time.Now()}, 10*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	entry, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if entry != nil {
		t.Errorf("expected expired entry to read as a miss, got %+v", entry)
	}
}

func TestMemoryStoreSweepEvicts(t *testing.T) {
	s := NewMemoryStore(time.Hour) // sweep manually below
	defer s.Close()
	ctx := context.Background()

	_ = s.SetWithTTL(ctx, "old", &Entry{Count: 1}, 1*time.Millisecond)
	_ = s.SetWithTTL(ctx, "live", &Entry{Count: 1}, time.Hour)
	time.Sleep(5 * time.Millisecond)

	s.sweep(time.Now())

	if s.len() != 1 {
		t.Errorf("expected the expired entry to be evicted, have %d entries", s.len())
	}
	if entry, _ := s.Get(ctx, "live"); entry == nil {
		t.Error("live entry should survive the sweep")
	}
}
