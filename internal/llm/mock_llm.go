package llm

import (
	"context"

	"github.com/stretchr/testify/mock"

	"article-inference/internal/inference"
)

// MockClient is a mock implementation of Client using testify/mock.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Summarize(ctx context.Context, text string, length inference.SummaryLength, style inference.SummaryStyle, language string) (string, int, error) {
	args := m.Called(ctx, text, length, style, language)
	return args.String(0), args.Int(1), args.Error(2)
}

func (m *MockClient) Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) (string, int, error) {
	args := m.Called(ctx, text, sourceLanguage, targetLanguage)
	return args.String(0), args.Int(1), args.Error(2)
}
