package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"article-inference/internal/app"
	"article-inference/internal/httputil"
	"article-inference/internal/inference"
	"article-inference/internal/llm"
	"article-inference/internal/ratelimit"
)

type summarizeRequest struct {
	Text   string `json:"text" validate:"required"`
	Length string `json:"length"`
}

type summarizeResponse struct {
	Summary    string `json:"summary"`
	Model      string `json:"model"`
	Length     string `json:"length"`
	TokensUsed int    `json:"tokensUsed,omitempty"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

func main() {
	deps, err := app.Build()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Close()

	r := newRouter(deps)

	addr := fmt.Sprintf(":%d", deps.Cfg.Port)
	deps.Log.Info("summarization proxy listening", "addr", addr, "model", deps.Cfg.LLMModel)
	if err := http.ListenAndServe(addr, r); err != nil {
		deps.Log.Error("server failed", "err", err)
	}
}

func newRouter(deps *app.Deps) http.Handler {
	r := httputil.NewRouter(deps.Log)
	r.Post("/summarize", summarizeHandler(deps))
	r.Get("/healthz", httputil.HealthHandler(deps.Log))
	r.MethodNotAllowed(usageHandler())
	return r
}

func summarizeHandler(deps *app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := deps.Log

		if deps.LLM == nil {
			writeError(w, http.StatusServiceUnavailable, errorResponse{
				Error:   string(inference.KindServiceUnavailable),
				Message: "Summarization is not configured on this server.",
			})
			return
		}

		var body summarizeRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, errorResponse{
				Error:   string(inference.KindInvalidInput),
				Message: "Request body must be JSON with a text field.",
			})
			return
		}
		if err := httputil.Validator.Struct(body); err != nil {
			writeError(w, http.StatusBadRequest, errorResponse{
				Error:   string(inference.KindInvalidInput),
				Message: "Text is required",
			})
			return
		}
		if msg, ok := validateText(body.Text); !ok {
			writeError(w, http.StatusBadRequest, errorResponse{
				Error:   string(inference.KindInvalidInput),
				Message: msg,
			})
			return
		}

		length := inference.SummaryLength(body.Length)
		if !length.Valid() {
			length = inference.LengthMedium
		}

		decision, err := deps.Limiter.Check(ctx, subjectKey(r))
		if err != nil {
			httputil.Fail(log, w, "rate limiter unavailable", err, http.StatusInternalServerError)
			return
		}
		setRateLimitHeaders(w, deps.Limiter.Ceiling(), decision)
		if !decision.Allowed {
			retryAfter := int(time.Until(decision.ResetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeError(w, http.StatusTooManyRequests, errorResponse{
				Error:      string(inference.KindRateLimited),
				Message:    "Rate limit exceeded. Try again later.",
				RetryAfter: retryAfter,
			})
			return
		}

		text := llm.Truncate(body.Text, inference.MaxModelInputChars)
		summary, tokens, err := deps.LLM.Summarize(ctx, text, length, inference.StyleTldr, deps.Cfg.OutputLanguage)
		if err != nil {
			writeUpstreamError(log, w, llm.Classify(err))
			return
		}

		httputil.WriteJSON(w, http.StatusOK, summarizeResponse{
			Summary:    summary,
			Model:      deps.Cfg.LLMModel,
			Length:     string(length),
			TokensUsed: tokens,
		})
	}
}

// validateText enforces the request bounds with caller-facing messages.
// Bounds count characters, not bytes, matching the truncation budget.
func validateText(text string) (string, bool) {
	switch chars := utf8.RuneCountInString(text); {
	case chars < inference.MinTextChars:
		return "Text must be at least 50 characters", false
	case chars > inference.MaxTextChars:
		return "Text must be less than 50,000 characters", false
	}
	return "", true
}

// subjectKey identifies the caller for rate limiting. The proxy sits behind
// an edge that sets forwarding headers; absent those we meter loopback as a
// single subject.
func subjectKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return "127.0.0.1"
}

func setRateLimitHeaders(w http.ResponseWriter, ceiling int, d ratelimit.Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(ceiling))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
}

// usageHandler documents the endpoint for callers using the wrong method.
func usageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusMethodNotAllowed, map[string]any{
			"error":   "method_not_allowed",
			"message": "Use POST /summarize with a JSON body.",
			"usage": map[string]any{
				"method": http.MethodPost,
				"path":   "/summarize",
				"body": map[string]string{
					"text":   "article text, 50 to 50,000 characters",
					"length": "short | medium | long | extended (optional, defaults to medium)",
				},
			},
		})
	}
}

func writeError(w http.ResponseWriter, status int, body errorResponse) {
	httputil.WriteJSON(w, status, body)
}

// writeUpstreamError maps a classified provider failure onto the proxy's
// wire contract.
func writeUpstreamError(log *slog.Logger, w http.ResponseWriter, err error) {
	ie, ok := inference.AsError(err)
	if !ok {
		ie = inference.NewError(inference.KindProviderFailure, "The summarization service failed.")
	}
	log.Error("upstream summarization failed", "kind", ie.Kind, "err", err)

	body := errorResponse{Error: string(ie.Kind), Message: ie.Message}
	status := http.StatusBadGateway
	switch ie.Kind {
	case inference.KindCloudRateLimited:
		status = http.StatusTooManyRequests
		body.RetryAfter = int(ie.RetryAfter.Seconds())
		if body.RetryAfter < 1 {
			body.RetryAfter = 60
		}
		w.Header().Set("Retry-After", strconv.Itoa(body.RetryAfter))
	case inference.KindServiceUnavailable:
		status = http.StatusServiceUnavailable
	case inference.KindContentRejected:
		status = http.StatusBadRequest
	}
	writeError(w, status, body)
}
