// Package inference holds the core data model shared by every provider:
// requests, task parameters, results, capabilities, and the error taxonomy.
package inference

import "time"

// Task enumerates the supported inference tasks.
type Task string

const (
	TaskSummarize Task = "summarize"
	TaskTranslate Task = "translate"
)

// SummaryLength controls the word/sentence budget of a summary.
type SummaryLength string

const (
	LengthShort    SummaryLength = "short"
	LengthMedium   SummaryLength = "medium"
	LengthLong     SummaryLength = "long"
	LengthExtended SummaryLength = "extended"
)

// Valid reports whether l is one of the four recognized lengths.
func (l SummaryLength) Valid() bool {
	switch l {
	case LengthShort, LengthMedium, LengthLong, LengthExtended:
		return true
	}
	return false
}

// SummaryStyle controls the shape of the summary output.
type SummaryStyle string

const (
	StyleTldr      SummaryStyle = "tldr"
	StyleKeyPoints SummaryStyle = "key-points"
	StyleTeaser    SummaryStyle = "teaser"
	StyleHeadline  SummaryStyle = "headline"
)

// ProviderID identifies an inference backend. DefaultOrder encodes the
// default preference (cheapest and most private first).
type ProviderID string

const (
	ProviderOnDevice    ProviderID = "on-device"
	ProviderPlatform    ProviderID = "platform"
	ProviderCloudProxy  ProviderID = "cloud-proxy"
	ProviderCloudDirect ProviderID = "cloud-direct"
)

// DefaultOrder returns provider ids in default preference order.
func DefaultOrder() []ProviderID {
	return []ProviderID{ProviderOnDevice, ProviderPlatform, ProviderCloudProxy, ProviderCloudDirect}
}

// Availability is the current usability of a provider for a task.
type Availability string

const (
	Available    Availability = "available"
	Downloadable Availability = "downloadable"
	Downloading  Availability = "downloading"
	Unavailable  Availability = "unavailable"
	NotSupported Availability = "not-supported"
)

// Usable reports whether a provider in this state can serve a request,
// possibly after a download.
func (a Availability) Usable() bool {
	return a == Available || a == Downloadable || a == Downloading
}

// Capability pairs a provider with its probed availability. Capabilities are
// recomputed per request; a background model download can finish at any time.
type Capability struct {
	Provider     ProviderID
	Availability Availability
}

// Params carries task-specific parameters. Summarize uses Length, Style and
// OutputLanguage; Translate uses SourceLanguage ("auto" allowed) and
// TargetLanguage.
type Params struct {
	Length         SummaryLength `json:"length,omitempty"`
	Style          SummaryStyle  `json:"style,omitempty"`
	OutputLanguage string        `json:"output_language,omitempty"`
	SourceLanguage string        `json:"source_language,omitempty"`
	TargetLanguage string        `json:"target_language,omitempty"`
}

// Request is an immutable inference request. RequestedProvider pins a
// specific backend when non-empty; otherwise selection follows DefaultOrder.
type Request struct {
	Text              string
	Task              Task
	Params            Params
	RequestedProvider ProviderID
}

// Input bounds shared by the orchestrator and the cloud proxy.
const (
	// MinTextChars is the smallest input worth summarizing.
	MinTextChars = 50
	// MaxTextChars bounds accepted input size.
	MaxTextChars = 50_000
	// MaxModelInputChars bounds what is actually sent to a model, to bound cost.
	MaxModelInputChars = 15_000
)

// Result is a normalized successful inference outcome.
type Result struct {
	Output      string     `json:"output"`
	Provider    ProviderID `json:"provider"`
	TokensUsed  int        `json:"tokens_used,omitempty"`
	CompletedAt time.Time  `json:"completed_at"`
}
