package llm

import (
	"fmt"
	"strings"

	"article-inference/internal/inference"
)

// lengthBudget maps a summary length to a word target and sentence range.
type lengthBudget struct {
	words     int
	sentences string
}

func budgetFor(length inference.SummaryLength) lengthBudget {
	switch length {
	case inference.LengthShort:
		return lengthBudget{words: 50, sentences: "2-3 sentences"}
	case inference.LengthLong:
		return lengthBudget{words: 200, sentences: "7-9 sentences"}
	case inference.LengthExtended:
		return lengthBudget{words: 350, sentences: "several short paragraphs"}
	default:
		return lengthBudget{words: 100, sentences: "4-5 sentences"}
	}
}

// SummaryWordTarget returns the word budget for a length. Used by the
// on-device extractive model to pick how many sentences to keep.
func SummaryWordTarget(length inference.SummaryLength) int {
	return budgetFor(length).words
}

// BuildSummaryPrompt produces the instruction for a summarization call.
// language is a BCP 47 tag naming the output language.
func BuildSummaryPrompt(length inference.SummaryLength, style inference.SummaryStyle, language string) string {
	if language == "" {
		language = "en"
	}
	b := budgetFor(length)

	var sb strings.Builder
	switch style {
	case inference.StyleKeyPoints:
		fmt.Fprintf(&sb, "Summarize the article as a bulleted list of its key points (using - for bullets), about %d words total.", b.words)
	case inference.StyleTeaser:
		fmt.Fprintf(&sb, "Write an enticing teaser for the article in %s, about %d words, that makes the reader want the full text without giving away the conclusion.", b.sentences, b.words)
	case inference.StyleHeadline:
		sb.WriteString("Write a single-sentence headline for the article, at most 15 words, no trailing punctuation.")
	default: // tldr
		fmt.Fprintf(&sb, "Summarize the article in %s, targeting %d words. Keep only the essential facts.", b.sentences, b.words)
	}
	fmt.Fprintf(&sb, " Respond in the language with code %q. Output plain text only, no preamble.", language)
	return sb.String()
}

// BuildTranslatePrompt produces the instruction for a translation call.
func BuildTranslatePrompt(sourceLanguage, targetLanguage string) string {
	if sourceLanguage == "" || sourceLanguage == "auto" {
		return fmt.Sprintf("Translate the text into the language with code %q, detecting the source language. Preserve paragraph breaks. Output only the translation.", targetLanguage)
	}
	return fmt.Sprintf("Translate the text from %q into %q. Preserve paragraph breaks. Output only the translation.", sourceLanguage, targetLanguage)
}

// Truncate bounds text to at most max characters, cutting on a rune boundary.
func Truncate(text string, max int) string {
	if max <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
