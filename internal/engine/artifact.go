package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"article-inference/internal/retry"
)

const (
	downloadAttempts  = 3
	downloadRetryBase = 500 * time.Millisecond
	downloadRetryCap  = 5 * time.Second
	downloadChunkSize = 32 * 1024
)

// fetchArtifact downloads a model artifact, reporting progress per chunk.
// Transient failures (network errors, 5xx) are retried with backoff; a 4xx
// is permanent.
func fetchArtifact(ctx context.Context, client *http.Client, url string, progress ProgressFunc) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < downloadAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retry.ExponentialBackoff(attempt-1, downloadRetryBase, downloadRetryCap)):
			}
		}
		data, permanent, err := fetchOnce(ctx, client, url, progress)
		if err == nil {
			return data, nil
		}
		if permanent {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("download %s: %w", url, lastErr)
}

func fetchOnce(ctx context.Context, client *http.Client, url string, progress ProgressFunc) (data []byte, permanent bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, true, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		permanent := resp.StatusCode >= 400 && resp.StatusCode < 500
		return nil, permanent, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	total := resp.ContentLength // -1 when the server does not say
	var loaded int64
	buf := make([]byte, downloadChunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			data = append(data, buf[:n]...)
			loaded += int64(n)
			if progress != nil {
				progress(loaded, total)
			}
		}
		if readErr == io.EOF {
			return data, false, nil
		}
		if readErr != nil {
			return nil, false, readErr
		}
	}
}
