// Package engine provides the on-device inference engine used by the worker
// host: model artifacts are downloaded on demand and executed in-process.
package engine

import (
	"context"

	"article-inference/internal/inference"
)

// ProgressFunc reports bytes loaded so far. total is -1 when unknown.
type ProgressFunc func(loaded, total int64)

// ModelSpec identifies a loadable model. Key uniquely determines the
// in-memory model artifact.
type ModelSpec struct {
	Name string
	Task inference.Task
}

// Key returns the stable identity of the model described.
func (s ModelSpec) Key() string {
	return s.Name + "/" + string(s.Task)
}

// Model is a loaded, ready-to-run model instance. Generate is not safely
// reentrant; the worker host serializes calls.
type Model interface {
	Generate(ctx context.Context, text string, params inference.Params) (string, error)
	Close() error
}

// Engine loads models by spec. Implementations report download progress
// through the progress callback.
type Engine interface {
	Load(ctx context.Context, spec ModelSpec, progress ProgressFunc) (Model, error)
}
