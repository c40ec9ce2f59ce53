// Package provider implements the inference backends and the orchestrator
// that selects among them. Each backend answers the same contract; the
// orchestrator never inspects backend internals, only capabilities and
// normalized results.
package provider

import (
	"context"

	"article-inference/internal/inference"
	"article-inference/internal/worker"
)

// Provider is one inference backend.
type Provider interface {
	// ID returns the backend's identity.
	ID() inference.ProviderID

	// Probe reports current availability for the request's task and
	// parameters. Read-only; called on every selection decision.
	Probe(ctx context.Context, req inference.Request) inference.Availability

	// Run executes the request. Download and inference progress is streamed
	// to onProgress when the backend has any to report. Errors are returned
	// classified (*inference.Error) wherever the backend can tell what
	// happened.
	Run(ctx context.Context, req inference.Request, onProgress worker.ProgressFunc) (*inference.Result, error)
}
