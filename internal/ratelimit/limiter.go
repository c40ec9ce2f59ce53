package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Defaults for the fixed window.
const (
	DefaultCeiling = 5
	DefaultWindow  = time.Hour
)

// Decision is the outcome of a limiter check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter enforces a fixed-window ceiling per subject key. A primary
// (distributed) store is consulted first; a transient primary error fails
// over to the fallback store for that single call rather than rejecting the
// request.
//
// The read-then-write sequence is not transactional: two requests from the
// same subject arriving in the same instant can both read a pre-increment
// count and both be allowed. The distributed backend offers no
// check-and-increment for JSON entries, and the overshoot is bounded by the
// number of concurrent in-flight requests per subject.
type Limiter struct {
	primary  Store
	fallback Store
	ceiling  int
	window   time.Duration
	log      *slog.Logger

	now func() time.Time
}

// New builds a limiter. primary may be nil, in which case only fallback is
// used. fallback must not be nil.
func New(primary, fallback Store, ceiling int, window time.Duration, log *slog.Logger) *Limiter {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		primary:  primary,
		fallback: fallback,
		ceiling:  ceiling,
		window:   window,
		log:      log,
		now:      time.Now,
	}
}

// Ceiling returns the configured per-window request ceiling.
func (l *Limiter) Ceiling() int { return l.ceiling }

// Check records one request for subject and reports whether it is allowed.
// A count at the ceiling is authoritative: the request is denied and the
// counter left unchanged.
func (l *Limiter) Check(ctx context.Context, subject string) (Decision, error) {
	store := l.primary
	if store == nil {
		store = l.fallback
	}

	entry, err := store.Get(ctx, subject)
	if err != nil && store != l.fallback {
		l.log.Warn("rate-limit store unavailable; falling back to in-process counters", "err", err)
		store = l.fallback
		entry, err = store.Get(ctx, subject)
	}
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit read: %w", err)
	}

	now := l.now()

	// Fresh window: absent entry or one whose window has elapsed.
	if entry == nil || !entry.ResetAt.After(now) {
		fresh := &Entry{Count: 1, ResetAt: now.Add(l.window)}
		if err := l.write(ctx, store, subject, fresh, l.window); err != nil {
			return Decision{}, err
		}
		return Decision{Allowed: true, Remaining: l.ceiling - 1, ResetAt: fresh.ResetAt}, nil
	}

	if entry.Count >= l.ceiling {
		return Decision{Allowed: false, Remaining: 0, ResetAt: entry.ResetAt}, nil
	}

	entry.Count++
	if err := l.write(ctx, store, subject, entry, entry.ResetAt.Sub(now)); err != nil {
		return Decision{}, err
	}
	return Decision{Allowed: true, Remaining: l.ceiling - entry.Count, ResetAt: entry.ResetAt}, nil
}

func (l *Limiter) write(ctx context.Context, store Store, subject string, entry *Entry, ttl time.Duration) error {
	err := store.SetWithTTL(ctx, subject, entry, ttl)
	if err != nil && store != l.fallback {
		l.log.Warn("rate-limit store write failed; writing to in-process counters", "err", err)
		err = l.fallback.SetWithTTL(ctx, subject, entry, ttl)
	}
	if err != nil {
		return fmt.Errorf("rate limit write: %w", err)
	}
	return nil
}
