package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"article-inference/internal/inference"
	"article-inference/internal/llm"
)

// LocalEngine downloads lightweight model artifacts (stopword weights for
// summarization, a lexicon for translation) from a registry and runs them
// in-process. It is the cheapest and most private backend: nothing leaves
// the device after the one-time artifact download.
type LocalEngine struct {
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

// NewLocalEngine creates an engine fetching artifacts under baseURL.
func NewLocalEngine(baseURL string, log *slog.Logger) *LocalEngine {
	return &LocalEngine{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		log:     log,
	}
}

// artifact is the on-disk shape of a model artifact.
type artifact struct {
	Stopwords []string          `json:"stopwords"`
	Lexicon   map[string]string `json:"lexicon,omitempty"`
}

// Load fetches and parses the artifact for spec.
func (e *LocalEngine) Load(ctx context.Context, spec ModelSpec, progress ProgressFunc) (Model, error) {
	url := fmt.Sprintf("%s/%s.json", e.baseURL, spec.Name)
	e.log.Info("loading model artifact", "model", spec.Name, "task", spec.Task, "url", url)

	data, err := fetchArtifact(ctx, e.client, url, progress)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", spec.Key(), err)
	}

	var art artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("parse model %s: %w", spec.Key(), err)
	}
	if spec.Task == inference.TaskTranslate && len(art.Lexicon) == 0 {
		return nil, fmt.Errorf("model %s has no lexicon for translation", spec.Name)
	}

	stopwords := make(map[string]bool, len(art.Stopwords))
	for _, w := range art.Stopwords {
		stopwords[strings.ToLower(w)] = true
	}
	return &localModel{spec: spec, stopwords: stopwords, lexicon: art.Lexicon}, nil
}

type localModel struct {
	spec      ModelSpec
	stopwords map[string]bool
	lexicon   map[string]string
	closed    bool
}

func (m *localModel) Generate(ctx context.Context, text string, params inference.Params) (string, error) {
	if m.closed {
		return "", fmt.Errorf("model %s is closed", m.spec.Key())
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch m.spec.Task {
	case inference.TaskSummarize:
		return m.summarize(text, params), nil
	case inference.TaskTranslate:
		return m.translate(text), nil
	default:
		return "", fmt.Errorf("model %s does not support task %s", m.spec.Name, m.spec.Task)
	}
}

func (m *localModel) Close() error {
	m.closed = true
	return nil
}

// summarize performs extractive summarization: sentences are scored by the
// frequency of their non-stopword terms and the best ones kept in document
// order until the word budget is spent.
func (m *localModel) summarize(text string, params inference.Params) string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return ""
	}

	freq := make(map[string]int)
	for _, s := range sentences {
		for _, w := range tokenize(s) {
			if !m.stopwords[w] {
				freq[w]++
			}
		}
	}

	type scored struct {
		index int
		score float64
	}
	ranked := make([]scored, 0, len(sentences))
	for i, s := range sentences {
		words := tokenize(s)
		if len(words) == 0 {
			continue
		}
		var sum int
		for _, w := range words {
			sum += freq[w]
		}
		ranked = append(ranked, scored{index: i, score: float64(sum) / float64(len(words))})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	// Text made purely of punctuation yields sentences with no words.
	if len(ranked) == 0 {
		return ""
	}

	if params.Style == inference.StyleHeadline {
		best := sentences[ranked[0].index]
		return trimWords(best, 15)
	}

	budget := llm.SummaryWordTarget(params.Length)
	var picked []int
	var words int
	for _, r := range ranked {
		picked = append(picked, r.index)
		words += len(tokenize(sentences[r.index]))
		if words >= budget {
			break
		}
	}
	sort.Ints(picked)

	if params.Style == inference.StyleKeyPoints {
		var sb strings.Builder
		for _, i := range picked {
			sb.WriteString("- ")
			sb.WriteString(strings.TrimSpace(sentences[i]))
			sb.WriteString("\n")
		}
		return strings.TrimRight(sb.String(), "\n")
	}

	parts := make([]string, 0, len(picked))
	for _, i := range picked {
		parts = append(parts, strings.TrimSpace(sentences[i]))
	}
	return strings.Join(parts, " ")
}

// translate does a word-by-word lexicon pass, leaving unknown words and
// punctuation intact.
func (m *localModel) translate(text string) string {
	var sb strings.Builder
	var word strings.Builder
	flush := func() {
		if word.Len() == 0 {
			return
		}
		w := word.String()
		if repl, ok := m.lexicon[strings.ToLower(w)]; ok {
			if unicode.IsUpper([]rune(w)[0]) {
				repl = capitalize(repl)
			}
			sb.WriteString(repl)
		} else {
			sb.WriteString(w)
		}
		word.Reset()
	}
	for _, r := range text {
		if unicode.IsLetter(r) || r == '\'' {
			word.WriteRune(r)
			continue
		}
		flush()
		sb.WriteRune(r)
	}
	flush()
	return sb.String()
}

var sentenceEnd = regexp.MustCompile(`([.!?]+)(\s+|$)`)

// splitSentences breaks text on terminal punctuation followed by whitespace.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	marked := sentenceEnd.ReplaceAllString(text, "$1\x00")
	parts := strings.Split(marked, "\x00")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	return fields
}

func trimWords(s string, max int) string {
	fields := strings.Fields(s)
	if len(fields) <= max {
		return strings.TrimRight(strings.TrimSpace(s), ".!?")
	}
	return strings.Join(fields[:max], " ")
}

func capitalize(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
