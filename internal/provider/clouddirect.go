package provider

import (
	"context"
	"time"

	"article-inference/internal/inference"
	"article-inference/internal/llm"
	"article-inference/internal/worker"
)

// CloudDirect calls the language-model API with the user's own key. Only
// available once a key has been configured and validated.
type CloudDirect struct {
	client llm.Client
}

// NewCloudDirect wraps a client built from the user's key. client may be nil
// when no key is configured; the backend then reports Unavailable.
func NewCloudDirect(client llm.Client) *CloudDirect {
	return &CloudDirect{client: client}
}

func (p *CloudDirect) ID() inference.ProviderID { return inference.ProviderCloudDirect }

func (p *CloudDirect) Probe(_ context.Context, _ inference.Request) inference.Availability {
	if p.client == nil {
		return inference.Unavailable
	}
	return inference.Available
}

func (p *CloudDirect) Run(ctx context.Context, req inference.Request, _ worker.ProgressFunc) (*inference.Result, error) {
	if p.client == nil {
		return nil, inference.NewError(inference.KindServiceUnavailable, "No API key configured.")
	}

	var (
		out    string
		tokens int
		err    error
	)
	switch req.Task {
	case inference.TaskSummarize:
		out, tokens, err = p.client.Summarize(ctx, req.Text, req.Params.Length, req.Params.Style, req.Params.OutputLanguage)
	case inference.TaskTranslate:
		out, tokens, err = p.client.Translate(ctx, req.Text, req.Params.SourceLanguage, req.Params.TargetLanguage)
	default:
		return nil, inference.Errorf(inference.KindInvalidInput, "unsupported task %q", req.Task)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, llm.Classify(err)
	}

	return &inference.Result{
		Output:      out,
		Provider:    inference.ProviderCloudDirect,
		TokensUsed:  tokens,
		CompletedAt: time.Now(),
	}, nil
}
