package resultcache

import (
	"context"
	"testing"
	"time"

	"article-inference/internal/inference"
)

func TestKeyDeterministic(t *testing.T) {
	p := inference.Params{Length: inference.LengthMedium, Style: inference.StyleTldr, OutputLanguage: "en"}
	a := Key("article-1", inference.TaskSummarize, p)
	b := Key("article-1", inference.TaskSummarize, p)
	if a != b {
		t.Errorf("same inputs must key identically: %s vs %s", a, b)
	}
}

func TestKeyDistinguishesInputs(t *testing.T) {
	base := inference.Params{Length: inference.LengthMedium}
	baseKey := Key("article-1", inference.TaskSummarize, base)

	tests := []struct {
		name    string
		content string
		task    inference.Task
		params  inference.Params
	}{
		{"different content", "article-2", inference.TaskSummarize, base},
		{"different task", "article-1", inference.TaskTranslate, base},
		{"different length", "article-1", inference.TaskSummarize, inference.Params{Length: inference.LengthLong}},
		{"different style", "article-1", inference.TaskSummarize, inference.Params{Length: inference.LengthMedium, Style: inference.StyleHeadline}},
		{"different language", "article-1", inference.TaskSummarize, inference.Params{Length: inference.LengthMedium, OutputLanguage: "fr"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if Key(tt.content, tt.task, tt.params) == baseKey {
				t.Error("expected a distinct key")
			}
		})
	}
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	got, err := c.Get(ctx, "missing")
	if err != nil || got != nil {
		t.Fatalf("expected clean miss, got %v, %v", got, err)
	}

	result := &inference.Result{
		Output:      "a summary",
		Provider:    inference.ProviderOnDevice,
		CompletedAt: time.Now(),
	}
	if err := c.Put(ctx, "k", result, time.Hour); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err = c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Output != "a summary" || got.Provider != inference.ProviderOnDevice {
		t.Errorf("got %+v", got)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	_ = c.Put(ctx, "k", &inference.Result{Output: "x"}, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("expected expired entry to read as a miss, got %+v", got)
	}
}
