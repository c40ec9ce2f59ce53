// Package platform talks to the device's native inference daemon (an
// Ollama-compatible HTTP API). The daemon owns its own model downloads, so
// availability is a four-state answer rather than a boolean.
package platform

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"article-inference/internal/inference"
)

// Client is a thin client for the local daemon's HTTP API.
type Client struct {
	baseURL string
	client  *http.Client
	log     *slog.Logger

	mu      sync.Mutex
	pulling map[string]bool
}

// NewClient creates a client against baseURL (typically http://localhost:11434).
func NewClient(baseURL string, log *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		log:     log,
		pulling: make(map[string]bool),
	}
}

// PullProgress reports bytes completed for an in-flight model download.
type PullProgress struct {
	Status    string
	Completed int64
	Total     int64
}

// Availability probes the daemon for model. The daemon being absent entirely
// maps to NotSupported; a reachable daemon without the model means the model
// can be pulled on first use.
func (c *Client) Availability(ctx context.Context, model string) inference.Availability {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return inference.Unavailable
	}
	resp, err := c.client.Do(req)
	if err != nil {
		// No daemon on this device.
		return inference.NotSupported
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return inference.Unavailable
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return inference.Unavailable
	}
	for _, m := range tags.Models {
		if m.Name == model {
			return inference.Available
		}
	}

	c.mu.Lock()
	inFlight := c.pulling[model]
	c.mu.Unlock()
	if inFlight {
		return inference.Downloading
	}
	return inference.Downloadable
}

// Pull downloads model through the daemon, streaming progress. The daemon
// does not cancel a pull midway, so callers should pass a context that
// outlives user abandonment.
func (c *Client) Pull(ctx context.Context, model string, progress func(PullProgress)) error {
	c.mu.Lock()
	c.pulling[model] = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pulling, model)
		c.mu.Unlock()
	}()

	body, err := json.Marshal(map[string]string{"name": model})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("pull %s: %w", model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pull %s: unexpected status %d", model, resp.StatusCode)
	}

	// The daemon streams newline-delimited JSON progress records.
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec struct {
			Status    string `json:"status"`
			Error     string `json:"error"`
			Completed int64  `json:"completed"`
			Total     int64  `json:"total"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		if rec.Error != "" {
			return fmt.Errorf("pull %s: %s", model, rec.Error)
		}
		if progress != nil {
			progress(PullProgress{Status: rec.Status, Completed: rec.Completed, Total: rec.Total})
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("pull %s: %w", model, err)
	}
	return nil
}

// Generate runs a single non-streaming completion through the daemon.
func (c *Client) Generate(ctx context.Context, model, prompt string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model":  model,
		"prompt": prompt,
		"stream": false,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generate: unexpected status %d", resp.StatusCode)
	}

	var out struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("generate: decode response: %w", err)
	}
	if out.Response == "" {
		return "", fmt.Errorf("generate: empty response")
	}
	return out.Response, nil
}
