package provider

import (
	"context"
	"time"

	"github.com/google/uuid"

	"article-inference/internal/inference"
	"article-inference/internal/llm"
	"article-inference/internal/platform"
	"article-inference/internal/worker"
)

// Platform runs inference through the device's native daemon. The daemon
// manages its own model downloads; running against a Downloadable model
// triggers the pull as a side effect of first use.
type Platform struct {
	client *platform.Client
	model  string
}

// NewPlatform wraps a daemon client for the given model.
func NewPlatform(client *platform.Client, model string) *Platform {
	return &Platform{client: client, model: model}
}

func (p *Platform) ID() inference.ProviderID { return inference.ProviderPlatform }

func (p *Platform) Probe(ctx context.Context, _ inference.Request) inference.Availability {
	return p.client.Availability(ctx, p.model)
}

func (p *Platform) Run(ctx context.Context, req inference.Request, onProgress worker.ProgressFunc) (*inference.Result, error) {
	requestID := uuid.New()

	if avail := p.client.Availability(ctx, p.model); avail == inference.Downloadable || avail == inference.Downloading {
		if err := p.pull(ctx, requestID, onProgress); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, inference.Errorf(inference.KindModelLoadFailed, "could not download the platform model: %w", err)
		}
	}

	prompt, err := buildPrompt(req)
	if err != nil {
		return nil, err
	}

	out, err := p.client.Generate(ctx, p.model, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, inference.Errorf(inference.KindProviderFailure, "platform inference failed: %w", err)
	}

	emitDone(requestID, onProgress)
	return &inference.Result{
		Output:      out,
		Provider:    inference.ProviderPlatform,
		CompletedAt: time.Now(),
	}, nil
}

// pull downloads the model with a context detached from the caller: the
// daemon cannot safely cancel a pull midway, so abandonment lets it finish
// in the background while this request returns the caller's ctx error.
func (p *Platform) pull(ctx context.Context, requestID uuid.UUID, onProgress worker.ProgressFunc) error {
	done := make(chan error, 1)
	go func() {
		var lastPercent float64
		done <- p.client.Pull(context.WithoutCancel(ctx), p.model, func(pp platform.PullProgress) {
			if onProgress == nil {
				return
			}
			percent := lastPercent
			if pp.Total > 0 {
				if v := 100 * float64(pp.Completed) / float64(pp.Total); v > percent {
					percent = v
				}
			}
			lastPercent = percent
			onProgress(worker.Progress{
				RequestID: requestID,
				Status:    worker.StatusDownload,
				Loaded:    pp.Completed,
				Total:     pp.Total,
				Percent:   percent,
			})
		})
	}()

	select {
	case err := <-done:
		if err == nil && onProgress != nil {
			onProgress(worker.Progress{RequestID: requestID, Status: worker.StatusReady, Percent: 100})
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildPrompt(req inference.Request) (string, error) {
	text := llm.Truncate(req.Text, inference.MaxModelInputChars)
	switch req.Task {
	case inference.TaskSummarize:
		return llm.BuildSummaryPrompt(req.Params.Length, req.Params.Style, req.Params.OutputLanguage) + "\n\n" + text, nil
	case inference.TaskTranslate:
		return llm.BuildTranslatePrompt(req.Params.SourceLanguage, req.Params.TargetLanguage) + "\n\n" + text, nil
	default:
		return "", inference.Errorf(inference.KindInvalidInput, "unsupported task %q", req.Task)
	}
}

func emitDone(requestID uuid.UUID, onProgress worker.ProgressFunc) {
	if onProgress != nil {
		onProgress(worker.Progress{RequestID: requestID, Status: worker.StatusDone, Percent: 100})
	}
}
