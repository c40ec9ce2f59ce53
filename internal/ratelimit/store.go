// Package ratelimit implements a fixed-window request limiter with a
// distributed Redis backend and an in-process fallback.
package ratelimit

import (
	"context"
	"time"
)

// Entry is one subject's counter for the current window. Created lazily on
// the first request of a window; expires at ResetAt.
type Entry struct {
	Count   int       `json:"count"`
	ResetAt time.Time `json:"reset_at"`
}

// Store persists rate-limit entries. Get returns nil on a miss. SetWithTTL
// writes the entry with a lifetime of ttl so window expiry needs no sweep on
// backends with native key expiry.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	SetWithTTL(ctx context.Context, key string, entry *Entry, ttl time.Duration) error
}
