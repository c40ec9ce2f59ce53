package provider

import (
	"context"
	"time"

	"article-inference/internal/engine"
	"article-inference/internal/inference"
	"article-inference/internal/worker"
)

// OnDevice runs inference through the worker host. The model artifact
// downloads on first use, so the backend reports Available without checking
// anything beyond the host being alive.
type OnDevice struct {
	host  *worker.Host
	model string
}

// NewOnDevice wraps a worker host. model names the artifact family to load.
func NewOnDevice(host *worker.Host, model string) *OnDevice {
	return &OnDevice{host: host, model: model}
}

func (p *OnDevice) ID() inference.ProviderID { return inference.ProviderOnDevice }

func (p *OnDevice) Probe(_ context.Context, _ inference.Request) inference.Availability {
	if p.host.Closed() {
		return inference.Unavailable
	}
	return inference.Available
}

func (p *OnDevice) Run(ctx context.Context, req inference.Request, onProgress worker.ProgressFunc) (*inference.Result, error) {
	spec := engine.ModelSpec{Name: p.model, Task: req.Task}
	out, err := p.host.Run(ctx, spec, req.Text, req.Params, onProgress)
	if err != nil {
		return nil, err
	}
	return &inference.Result{
		Output:      out,
		Provider:    inference.ProviderOnDevice,
		CompletedAt: time.Now(),
	}, nil
}
