// Package resultcache stores completed inference results keyed by
// (content identity, task, parameters) so repeated requests never re-invoke
// a provider.
package resultcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"article-inference/internal/inference"
)

// Cache provides inference result caching.
type Cache interface {
	// Get retrieves a cached result by key. Returns nil if not found.
	Get(ctx context.Context, key string) (*inference.Result, error)

	// Put stores a result with TTL.
	Put(ctx context.Context, key string, result *inference.Result, ttl time.Duration) error

	// Close closes the cache connection.
	Close() error
}

// Key derives a stable cache key from the content identity, task and the
// parameters that affect the output. Two requests with the same key are
// interchangeable.
func Key(contentID string, task inference.Task, p inference.Params) string {
	canonical := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s",
		contentID, task, p.Length, p.Style, p.OutputLanguage, p.SourceLanguage, p.TargetLanguage)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
