package llm

import (
	"context"

	"article-inference/internal/inference"
)

// Client is a minimal LLM interface to allow pluggable providers.
// Both calls return the generated text and the tokens consumed.
type Client interface {
	Summarize(ctx context.Context, text string, length inference.SummaryLength, style inference.SummaryStyle, language string) (string, int, error)
	Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) (string, int, error)
}
