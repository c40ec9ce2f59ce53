package llm

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"

	"article-inference/internal/inference"
)

const defaultRetryAfter = 60 * time.Second

// Classify maps an upstream LLM API error to the inference error taxonomy.
// Already-classified errors pass through unchanged.
func Classify(err error) *inference.Error {
	if ie, ok := inference.AsError(err); ok {
		return ie
	}

	var apierr *openai.Error
	if errors.As(err, &apierr) {
		retryAfter := retryAfterFrom(apierr.Response)
		return classifyStatus(apierr.StatusCode, strings.ToLower(apierr.Message), retryAfter)
	}

	return inference.Errorf(inference.KindProviderFailure, "language model call failed: %w", err)
}

// classifyStatus applies the provider error taxonomy to a bare HTTP status
// and lowercase message.
func classifyStatus(status int, message string, retryAfter time.Duration) *inference.Error {
	if retryAfter <= 0 {
		retryAfter = defaultRetryAfter
	}
	switch {
	case status == http.StatusTooManyRequests && strings.Contains(message, "insufficient_quota"),
		strings.Contains(message, "quota"):
		// Exhausted billing quota is a configuration problem, not a
		// transient limit.
		return inference.NewError(inference.KindServiceUnavailable, "The summarization service is not available right now.")
	case status == http.StatusTooManyRequests, strings.Contains(message, "resource exhausted"), strings.Contains(message, "resource_exhausted"):
		return inference.NewError(inference.KindCloudRateLimited, "The language model is receiving too many requests. Try again shortly.").
			WithRetryAfter(retryAfter)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return inference.NewError(inference.KindServiceUnavailable, "The summarization service is not available right now.")
	case strings.Contains(message, "content_filter"), strings.Contains(message, "content management policy"), strings.Contains(message, "safety"):
		return inference.NewError(inference.KindContentRejected, "The content could not be processed.")
	default:
		return inference.NewError(inference.KindProviderFailure, "The language model request failed. You can try again.")
	}
}

// retryAfterFrom reads a Retry-After header in seconds, if present.
func retryAfterFrom(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
