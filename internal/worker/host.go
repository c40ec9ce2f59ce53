// Package worker hosts on-device models in a dedicated goroutine. All
// interaction is message based: callers submit requests and receive a stream
// of progress events plus exactly one terminal result per request.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"article-inference/internal/engine"
	"article-inference/internal/inference"
)

// Status names a phase of model loading or inference.
type Status string

const (
	StatusInitiate Status = "initiate"
	StatusDownload Status = "download"
	StatusProgress Status = "progress"
	StatusReady    Status = "ready"
	StatusDone     Status = "done"
)

// Progress is one event on the externally observable progress channel.
// Percent is monotonically non-decreasing per request; Loaded/Total are set
// when byte counts are known.
type Progress struct {
	RequestID uuid.UUID `json:"request_id"`
	Status    Status    `json:"status"`
	Loaded    int64     `json:"loaded,omitempty"`
	Total     int64     `json:"total,omitempty"`
	Percent   float64   `json:"percent"`
}

// ProgressFunc consumes progress events. Called from the host goroutine;
// implementations must not block for long.
type ProgressFunc func(Progress)

// ErrClosed is returned for requests submitted after Close.
var ErrClosed = errors.New("worker host closed")

type opKind int

const (
	opEnsure opKind = iota
	opRun
	opUnload
)

type request struct {
	kind       opKind
	id         uuid.UUID
	spec       engine.ModelSpec
	text       string
	params     inference.Params
	onProgress ProgressFunc
	ctx        context.Context
	done       chan response
}

type response struct {
	output string
	err    error
}

// Host owns at most one resident model. A load for a different key evicts
// the resident one; run calls are strictly serialized because the engine is
// not reentrant per model instance.
type Host struct {
	eng      engine.Engine
	log      *slog.Logger
	requests chan *request
	closed   chan struct{}
	once     sync.Once
}

// New starts the host goroutine.
func New(eng engine.Engine, log *slog.Logger) *Host {
	h := &Host{
		eng:      eng,
		log:      log,
		requests: make(chan *request),
		closed:   make(chan struct{}),
	}
	go h.loop()
	return h
}

// EnsureModel loads the model for spec, evicting a resident model with a
// different key. Download progress is streamed to onProgress.
func (h *Host) EnsureModel(ctx context.Context, spec engine.ModelSpec, onProgress ProgressFunc) error {
	_, err := h.submit(ctx, &request{kind: opEnsure, spec: spec, onProgress: onProgress})
	return err
}

// Run executes one inference against the model for spec, loading it first if
// needed. Queued behind any in-flight call. Abandoning ctx returns early to
// the caller but leaves the resident model intact for later requests.
func (h *Host) Run(ctx context.Context, spec engine.ModelSpec, text string, params inference.Params, onProgress ProgressFunc) (string, error) {
	return h.submit(ctx, &request{kind: opRun, spec: spec, text: text, params: params, onProgress: onProgress})
}

// Unload evicts the resident model if it matches spec.
func (h *Host) Unload(spec engine.ModelSpec) {
	_, _ = h.submit(context.Background(), &request{kind: opUnload, spec: spec})
}

// Close stops the host and releases the resident model.
func (h *Host) Close() {
	h.once.Do(func() { close(h.closed) })
}

// Closed reports whether the host has been shut down. The capability prober
// treats a closed host as unreachable.
func (h *Host) Closed() bool {
	select {
	case <-h.closed:
		return true
	default:
		return false
	}
}

func (h *Host) submit(ctx context.Context, req *request) (string, error) {
	req.id = uuid.New()
	req.ctx = ctx
	req.done = make(chan response, 1) // buffered so an abandoned caller never blocks the host

	select {
	case h.requests <- req:
	case <-ctx.Done():
		return "", ctx.Err()
	case <-h.closed:
		return "", ErrClosed
	}

	select {
	case resp := <-req.done:
		return resp.output, resp.err
	case <-ctx.Done():
		// Abandoned mid-flight. The host finishes the operation in the
		// background; the buffered channel absorbs the terminal event.
		return "", ctx.Err()
	}
}

// resident is the arena-of-one model slot. Only the loop goroutine touches it.
type resident struct {
	spec     engine.ModelSpec
	model    engine.Model
	poisoned bool
}

func (h *Host) loop() {
	var slot *resident
	defer func() {
		if slot != nil && slot.model != nil {
			_ = slot.model.Close()
		}
	}()

	for {
		select {
		case <-h.closed:
			return
		case req := <-h.requests:
			switch req.kind {
			case opEnsure:
				var err error
				slot, err = h.ensure(slot, req)
				req.done <- response{err: err}
			case opRun:
				var err error
				slot, err = h.ensure(slot, req)
				if err != nil {
					req.done <- response{err: err}
					continue
				}
				out, err := h.generate(slot, req)
				req.done <- response{output: out, err: err}
			case opUnload:
				if slot != nil && slot.spec.Key() == req.spec.Key() {
					_ = slot.model.Close()
					slot = nil
				}
				req.done <- response{}
			}
		}
	}
}

// ensure returns a slot holding a healthy model for req.spec, reusing the
// resident one when the key matches and it is not poisoned.
func (h *Host) ensure(slot *resident, req *request) (*resident, error) {
	if slot != nil && slot.spec.Key() == req.spec.Key() && !slot.poisoned {
		emit(req, Progress{Status: StatusReady, Percent: 100})
		return slot, nil
	}

	if slot != nil {
		h.log.Info("evicting resident model", "evicted", slot.spec.Key(), "loading", req.spec.Key())
		_ = slot.model.Close()
		slot = nil
	}

	emit(req, Progress{Status: StatusInitiate})

	// A download in progress is not safely cancelable; detach from the
	// caller so an abandoned request lets the load finish in the background.
	loadCtx := context.WithoutCancel(req.ctx)

	var lastPercent float64
	started := false
	model, err := h.eng.Load(loadCtx, req.spec, func(loaded, total int64) {
		status := StatusProgress
		if !started {
			status = StatusDownload
			started = true
		}
		percent := lastPercent
		if total > 0 {
			if p := 100 * float64(loaded) / float64(total); p > percent {
				percent = p
			}
		}
		lastPercent = percent
		emit(req, Progress{Status: status, Loaded: loaded, Total: total, Percent: percent})
	})
	if err != nil {
		h.log.Error("model load failed", "model", req.spec.Key(), "err", err)
		return nil, inference.Errorf(inference.KindModelLoadFailed, "could not load the on-device model: %w", err)
	}

	emit(req, Progress{Status: StatusReady, Percent: 100})
	return &resident{spec: req.spec, model: model}, nil
}

func (h *Host) generate(slot *resident, req *request) (string, error) {
	out, err := slot.model.Generate(req.ctx, req.text, req.params)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Caller abandonment, not an engine fault; the model stays usable.
			return "", err
		}
		// Engine fault: poison the handle so the next request reloads fresh
		// instead of reusing a crashed model.
		slot.poisoned = true
		h.log.Error("engine failure; resident model poisoned", "model", slot.spec.Key(), "err", err)
		return "", inference.Errorf(inference.KindEngineFailure, "on-device inference failed: %w", fmt.Errorf("%s: %w", slot.spec.Key(), err))
	}
	emit(req, Progress{Status: StatusDone, Percent: 100})
	return out, nil
}

func emit(req *request, p Progress) {
	if req.onProgress == nil {
		return
	}
	p.RequestID = req.id
	req.onProgress(p)
}
