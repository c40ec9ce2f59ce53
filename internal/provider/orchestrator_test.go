package provider

import (
	"context"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"article-inference/internal/inference"
	"article-inference/internal/logger"
	"article-inference/internal/resultcache"
	"article-inference/internal/worker"
)

// stubProvider reports a fixed availability and counts invocations.
type stubProvider struct {
	id     inference.ProviderID
	avail  inference.Availability
	runs   atomic.Int32
	probes atomic.Int32
	err    error
}

func (s *stubProvider) ID() inference.ProviderID { return s.id }

func (s *stubProvider) Probe(context.Context, inference.Request) inference.Availability {
	s.probes.Add(1)
	return s.avail
}

func (s *stubProvider) Run(_ context.Context, req inference.Request, _ worker.ProgressFunc) (*inference.Result, error) {
	s.runs.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &inference.Result{
		Output:      "summary from " + string(s.id),
		Provider:    s.id,
		CompletedAt: time.Now(),
	}, nil
}

var validText = strings.Repeat("An article about orchestration. ", 10)

func summarizeReq() inference.Request {
	return inference.Request{
		Text:   validText,
		Task:   inference.TaskSummarize,
		Params: inference.Params{Length: inference.LengthMedium, Style: inference.StyleTldr},
	}
}

func newOrchestrator(t *testing.T, providers ...Provider) *Orchestrator {
	t.Helper()
	log := logger.NewWithWriter("error", io.Discard)
	return NewOrchestrator(providers, resultcache.NewMemoryCache(), time.Hour, log)
}

func TestExecutePicksFirstAvailable(t *testing.T) {
	onDevice := &stubProvider{id: inference.ProviderOnDevice, avail: inference.Unavailable}
	plat := &stubProvider{id: inference.ProviderPlatform, avail: inference.Available}
	proxy := &stubProvider{id: inference.ProviderCloudProxy, avail: inference.Available}
	o := newOrchestrator(t, onDevice, plat, proxy)

	res, err := o.Execute(context.Background(), "article-1", summarizeReq(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, inference.ProviderPlatform, res.Provider)
	assert.Equal(t, int32(0), onDevice.runs.Load())
	assert.Equal(t, int32(1), plat.runs.Load())
	assert.Equal(t, int32(0), proxy.runs.Load(), "preference order stops at the first available backend")
}

func TestExecuteHonorsPinnedProvider(t *testing.T) {
	onDevice := &stubProvider{id: inference.ProviderOnDevice, avail: inference.Available}
	proxy := &stubProvider{id: inference.ProviderCloudProxy, avail: inference.Available}
	o := newOrchestrator(t, onDevice, proxy)

	req := summarizeReq()
	req.RequestedProvider = inference.ProviderCloudProxy

	res, err := o.Execute(context.Background(), "article-1", req, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, inference.ProviderCloudProxy, res.Provider)
	assert.Equal(t, int32(0), onDevice.runs.Load())
}

func TestExecutePinnedProviderUnusable(t *testing.T) {
	onDevice := &stubProvider{id: inference.ProviderOnDevice, avail: inference.Available}
	proxy := &stubProvider{id: inference.ProviderCloudProxy, avail: inference.Unavailable}
	o := newOrchestrator(t, onDevice, proxy)

	req := summarizeReq()
	req.RequestedProvider = inference.ProviderCloudProxy

	_, err := o.Execute(context.Background(), "article-1", req, nil, nil)
	require.Error(t, err)
	ie, ok := inference.AsError(err)
	require.True(t, ok)
	assert.Equal(t, inference.KindUnavailable, ie.Kind)
	assert.Equal(t, int32(0), onDevice.runs.Load(), "a pin is never silently substituted")
}

func TestExecuteFallsBackToDownloadable(t *testing.T) {
	onDevice := &stubProvider{id: inference.ProviderOnDevice, avail: inference.Unavailable}
	plat := &stubProvider{id: inference.ProviderPlatform, avail: inference.Downloadable}
	o := newOrchestrator(t, onDevice, plat)

	var states []State
	res, err := o.Execute(context.Background(), "article-1", summarizeReq(), nil, func(s State) {
		states = append(states, s)
	})
	require.NoError(t, err)
	assert.Equal(t, inference.ProviderPlatform, res.Provider)
	assert.Contains(t, states, StateDownloading, "a downloadable pick surfaces the downloading state")
	assert.Equal(t, StateCompleted, states[len(states)-1])
}

func TestExecuteAllUnavailable(t *testing.T) {
	onDevice := &stubProvider{id: inference.ProviderOnDevice, avail: inference.Unavailable}
	plat := &stubProvider{id: inference.ProviderPlatform, avail: inference.NotSupported}
	o := newOrchestrator(t, onDevice, plat)

	var states []State
	_, err := o.Execute(context.Background(), "article-1", summarizeReq(), nil, func(s State) {
		states = append(states, s)
	})
	require.Error(t, err)
	ie, ok := inference.AsError(err)
	require.True(t, ok)
	assert.Equal(t, inference.KindUnavailable, ie.Kind)
	assert.Equal(t, StateUnavailable, states[len(states)-1])

	// Terminating in Unavailable must not touch any backend.
	assert.Equal(t, int32(0), onDevice.runs.Load())
	assert.Equal(t, int32(0), plat.runs.Load())
}

func TestExecuteCachedResultShortCircuits(t *testing.T) {
	p := &stubProvider{id: inference.ProviderOnDevice, avail: inference.Available}
	o := newOrchestrator(t, p)
	ctx := context.Background()

	first, err := o.Execute(ctx, "article-1", summarizeReq(), nil, nil)
	require.NoError(t, err)

	second, err := o.Execute(ctx, "article-1", summarizeReq(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, first.Output, second.Output)
	assert.Equal(t, int32(1), p.runs.Load(), "identical request must reuse the cached result")
	assert.Equal(t, int32(1), p.probes.Load(), "a cache hit skips capability probing entirely")
}

func TestExecuteDistinctParamsMissCache(t *testing.T) {
	p := &stubProvider{id: inference.ProviderOnDevice, avail: inference.Available}
	o := newOrchestrator(t, p)
	ctx := context.Background()

	_, err := o.Execute(ctx, "article-1", summarizeReq(), nil, nil)
	require.NoError(t, err)

	other := summarizeReq()
	other.Params.Length = inference.LengthLong
	_, err = o.Execute(ctx, "article-1", other, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, int32(2), p.runs.Load())
}

func TestExecuteNoCrossProviderCascade(t *testing.T) {
	failing := &stubProvider{
		id:    inference.ProviderOnDevice,
		avail: inference.Available,
		err:   inference.NewError(inference.KindEngineFailure, "engine crashed"),
	}
	healthy := &stubProvider{id: inference.ProviderCloudProxy, avail: inference.Available}
	o := newOrchestrator(t, failing, healthy)

	_, err := o.Execute(context.Background(), "article-1", summarizeReq(), nil, nil)
	require.Error(t, err)
	ie, ok := inference.AsError(err)
	require.True(t, ok)
	assert.Equal(t, inference.KindEngineFailure, ie.Kind)
	assert.Equal(t, int32(0), healthy.runs.Load(), "a mid-flight failure is surfaced, not cascaded")
}

func TestExecuteValidation(t *testing.T) {
	p := &stubProvider{id: inference.ProviderOnDevice, avail: inference.Available}
	o := newOrchestrator(t, p)

	tests := []struct {
		name    string
		mutate  func(*inference.Request)
		message string
	}{
		{
			name:    "too short",
			mutate:  func(r *inference.Request) { r.Text = strings.Repeat("x", 49) },
			message: "Text must be at least 50 characters",
		},
		{
			name:    "too long",
			mutate:  func(r *inference.Request) { r.Text = strings.Repeat("x", 50_001) },
			message: "Text must be less than 50,000 characters",
		},
		{
			name: "translation without target",
			mutate: func(r *inference.Request) {
				r.Task = inference.TaskTranslate
				r.Params = inference.Params{SourceLanguage: "auto"}
			},
			message: "A target language is required for translation",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := summarizeReq()
			tt.mutate(&req)
			_, err := o.Execute(context.Background(), "article-1", req, nil, nil)
			require.Error(t, err)
			ie, ok := inference.AsError(err)
			require.True(t, ok)
			assert.Equal(t, inference.KindInvalidInput, ie.Kind)
			assert.Equal(t, tt.message, ie.Message)
		})
	}

	// Validation failures never reach a backend.
	assert.Equal(t, int32(0), p.runs.Load())
	assert.Equal(t, int32(0), p.probes.Load())
}

func TestExecuteValidationCountsCharacters(t *testing.T) {
	p := &stubProvider{id: inference.ProviderOnDevice, avail: inference.Available}
	o := newOrchestrator(t, p)

	// 30 characters but 60 bytes: still below the minimum bound.
	req := summarizeReq()
	req.Text = strings.Repeat("é", 30)
	_, err := o.Execute(context.Background(), "article-1", req, nil, nil)
	require.Error(t, err)
	ie, ok := inference.AsError(err)
	require.True(t, ok)
	assert.Equal(t, inference.KindInvalidInput, ie.Kind)
	assert.Equal(t, "Text must be at least 50 characters", ie.Message)
	assert.Equal(t, int32(0), p.runs.Load())

	// 50 characters clears the bound regardless of byte width.
	req.Text = strings.Repeat("é", 50)
	_, err = o.Execute(context.Background(), "article-2", req, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), p.runs.Load())
}

func TestExecuteSurvivesCacheFailures(t *testing.T) {
	p := &stubProvider{id: inference.ProviderOnDevice, avail: inference.Available}

	cache := new(resultcache.MockCache)
	cache.On("Get", mock.Anything, mock.Anything).Return(nil, assert.AnError)
	cache.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(assert.AnError)

	log := logger.NewWithWriter("error", io.Discard)
	o := NewOrchestrator([]Provider{p}, cache, time.Hour, log)

	res, err := o.Execute(context.Background(), "article-1", summarizeReq(), nil, nil)
	require.NoError(t, err, "a broken cache degrades to uncached execution")
	assert.Equal(t, inference.ProviderOnDevice, res.Provider)
	cache.AssertExpectations(t)
}

func TestProberProbesEveryProvider(t *testing.T) {
	a := &stubProvider{id: inference.ProviderOnDevice, avail: inference.Available}
	b := &stubProvider{id: inference.ProviderCloudProxy, avail: inference.NotSupported}
	prober := NewProber([]Provider{a, b})

	caps := prober.Probe(context.Background(), summarizeReq())
	require.Len(t, caps, 2)
	assert.Equal(t, inference.Capability{Provider: inference.ProviderOnDevice, Availability: inference.Available}, caps[0])
	assert.Equal(t, inference.Capability{Provider: inference.ProviderCloudProxy, Availability: inference.NotSupported}, caps[1])
}
