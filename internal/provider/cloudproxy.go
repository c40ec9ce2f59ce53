package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"article-inference/internal/inference"
	"article-inference/internal/worker"
)

// CloudProxy calls our own rate-limited summarization proxy. No credential
// is needed on the client side; the proxy holds the server key and meters
// callers by network identity.
type CloudProxy struct {
	endpoint string
	client   *http.Client

	// A hard misconfiguration answer (503) sticks for the session: probing
	// again would just burn a metered request.
	misconfigured atomic.Bool
}

// NewCloudProxy builds a client for the proxy's summarize endpoint.
func NewCloudProxy(endpoint string) *CloudProxy {
	return &CloudProxy{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *CloudProxy) ID() inference.ProviderID { return inference.ProviderCloudProxy }

func (p *CloudProxy) Probe(_ context.Context, req inference.Request) inference.Availability {
	// The proxy only summarizes.
	if req.Task != inference.TaskSummarize {
		return inference.NotSupported
	}
	if p.misconfigured.Load() {
		return inference.Unavailable
	}
	return inference.Available
}

type proxyRequest struct {
	Text   string `json:"text"`
	Length string `json:"length,omitempty"`
}

type proxyResponse struct {
	Summary    string `json:"summary"`
	Model      string `json:"model"`
	Length     string `json:"length"`
	TokensUsed int    `json:"tokensUsed,omitempty"`
}

type proxyError struct {
	Error      string `json:"error"`
	Message    string `json:"message,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

func (p *CloudProxy) Run(ctx context.Context, req inference.Request, _ worker.ProgressFunc) (*inference.Result, error) {
	if req.Task != inference.TaskSummarize {
		return nil, inference.Errorf(inference.KindInvalidInput, "the cloud proxy does not support task %q", req.Task)
	}

	body, err := json.Marshal(proxyRequest{Text: req.Text, Length: string(req.Params.Length)})
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, inference.Errorf(inference.KindProviderFailure, "summarization service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var out proxyResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, inference.Errorf(inference.KindProviderFailure, "invalid proxy response: %w", err)
		}
		return &inference.Result{
			Output:      out.Summary,
			Provider:    inference.ProviderCloudProxy,
			TokensUsed:  out.TokensUsed,
			CompletedAt: time.Now(),
		}, nil
	}

	return nil, p.classify(resp)
}

func (p *CloudProxy) classify(resp *http.Response) error {
	var body proxyError
	_ = json.NewDecoder(resp.Body).Decode(&body)

	message := body.Message
	retryAfter := time.Duration(body.RetryAfter) * time.Second

	switch resp.StatusCode {
	case http.StatusBadRequest:
		if message == "" {
			message = "The article could not be summarized."
		}
		return inference.NewError(inference.KindInvalidInput, message)
	case http.StatusTooManyRequests:
		kind := inference.KindRateLimited
		if body.Error == string(inference.KindCloudRateLimited) {
			kind = inference.KindCloudRateLimited
		}
		if message == "" {
			message = "Too many summaries requested. Try again later."
		}
		return inference.NewError(kind, message).WithRetryAfter(retryAfter)
	case http.StatusServiceUnavailable:
		p.misconfigured.Store(true)
		if message == "" {
			message = "The summarization service is not available right now."
		}
		return inference.NewError(inference.KindServiceUnavailable, message)
	default:
		return inference.NewError(inference.KindProviderFailure,
			fmt.Sprintf("The summarization service failed (status %d).", resp.StatusCode))
	}
}
