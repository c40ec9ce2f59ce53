package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"article-inference/internal/inference"
	"article-inference/internal/resultcache"
	"article-inference/internal/worker"
)

// State names a phase of a request's lifecycle, surfaced to UI layers
// through the state callback.
type State string

const (
	StateIdle        State = "idle"
	StateChecking    State = "checking"
	StateDownloading State = "downloading"
	StateRunning     State = "running"
	StateCompleted   State = "completed"
	StateError       State = "error"
	StateUnavailable State = "unavailable"
)

// StateFunc observes state transitions. Optional; may be nil.
type StateFunc func(State)

// Orchestrator selects a backend per request and normalizes its outcome.
// Completed results are written through to the result cache so an identical
// request never re-invokes a provider. A mid-flight provider failure is
// surfaced, not cascaded to the next backend: each backend needs its own
// user consent or configuration that cannot be silently substituted.
type Orchestrator struct {
	providers []Provider
	prober    *Prober
	cache     resultcache.Cache
	cacheTTL  time.Duration
	log       *slog.Logger
	group     singleflight.Group
}

// NewOrchestrator builds the façade. Selection follows
// inference.DefaultOrder regardless of registration order.
func NewOrchestrator(providers []Provider, cache resultcache.Cache, cacheTTL time.Duration, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		providers: providers,
		prober:    NewProber(providers),
		cache:     cache,
		cacheTTL:  cacheTTL,
		log:       log,
	}
}

// Execute runs one inference request for the article identified by
// contentID. Concurrent identical requests are coalesced into a single
// provider invocation.
func (o *Orchestrator) Execute(ctx context.Context, contentID string, req inference.Request, onProgress worker.ProgressFunc, onState StateFunc) (*inference.Result, error) {
	setState(onState, StateIdle)

	if err := validate(req); err != nil {
		setState(onState, StateError)
		return nil, err
	}

	key := resultcache.Key(contentID, req.Task, req.Params)

	if cached, err := o.cache.Get(ctx, key); err == nil && cached != nil {
		o.log.Debug("result cache hit", "content_id", contentID, "task", req.Task)
		setState(onState, StateCompleted)
		return cached, nil
	} else if err != nil {
		o.log.Warn("result cache read failed", "err", err)
	}

	out, err, _ := o.group.Do(key, func() (any, error) {
		return o.execute(ctx, key, req, onProgress, onState)
	})
	if err != nil {
		return nil, err
	}
	return out.(*inference.Result), nil
}

func (o *Orchestrator) execute(ctx context.Context, key string, req inference.Request, onProgress worker.ProgressFunc, onState StateFunc) (*inference.Result, error) {
	setState(onState, StateChecking)
	caps := o.prober.Probe(ctx, req)

	chosen, availability, err := o.pick(caps, req.RequestedProvider)
	if err != nil {
		setState(onState, StateUnavailable)
		return nil, err
	}

	if availability == inference.Downloadable || availability == inference.Downloading {
		setState(onState, StateDownloading)
	}
	setState(onState, StateRunning)

	o.log.Info("provider selected", "provider", chosen.ID(), "availability", availability, "task", req.Task)
	result, err := chosen.Run(ctx, req, onProgress)
	if err != nil {
		setState(onState, StateError)
		return nil, normalize(err)
	}

	// Write-through before returning so the caller observes the cache as
	// already populated.
	if err := o.cache.Put(ctx, key, result, o.cacheTTL); err != nil {
		o.log.Warn("result cache write failed", "err", err)
	}

	setState(onState, StateCompleted)
	return result, nil
}

// pick applies the selection policy: a pinned provider is honored when its
// capability allows use; otherwise the first Available backend in preference
// order wins, then the first downloadable one.
func (o *Orchestrator) pick(caps []inference.Capability, requested inference.ProviderID) (Provider, inference.Availability, error) {
	byID := make(map[inference.ProviderID]inference.Availability, len(caps))
	for _, c := range caps {
		byID[c.Provider] = c.Availability
	}

	if requested != "" {
		avail, ok := byID[requested]
		if !ok {
			return nil, "", inference.Errorf(inference.KindInvalidInput, "unknown provider %q", requested)
		}
		if avail.Usable() {
			return o.provider(requested), avail, nil
		}
		return nil, "", inference.NewError(inference.KindUnavailable,
			fmt.Sprintf("The requested provider is not usable on this device (%s).", avail))
	}

	for _, id := range inference.DefaultOrder() {
		if byID[id] == inference.Available {
			return o.provider(id), inference.Available, nil
		}
	}
	for _, id := range inference.DefaultOrder() {
		if avail := byID[id]; avail == inference.Downloadable || avail == inference.Downloading {
			return o.provider(id), avail, nil
		}
	}

	return nil, "", inference.NewError(inference.KindUnavailable, "Summaries are not available on this device.")
}

func (o *Orchestrator) provider(id inference.ProviderID) Provider {
	for _, p := range o.providers {
		if p.ID() == id {
			return p
		}
	}
	return nil
}

func validate(req inference.Request) error {
	// Bounds count characters, not bytes, matching the truncation budget.
	chars := utf8.RuneCountInString(strings.TrimSpace(req.Text))
	if chars < inference.MinTextChars {
		return inference.NewError(inference.KindInvalidInput,
			fmt.Sprintf("Text must be at least %d characters", inference.MinTextChars))
	}
	if chars > inference.MaxTextChars {
		return inference.NewError(inference.KindInvalidInput, "Text must be less than 50,000 characters")
	}
	if req.Task == inference.TaskTranslate && req.Params.TargetLanguage == "" {
		return inference.NewError(inference.KindInvalidInput, "A target language is required for translation")
	}
	return nil
}

// normalize guarantees the caller always sees either a context error or a
// classified *inference.Error.
func normalize(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if _, ok := inference.AsError(err); ok {
		return err
	}
	return inference.Errorf(inference.KindProviderFailure, "inference failed: %w", err)
}

func setState(onState StateFunc, s State) {
	if onState != nil {
		onState(s)
	}
}
