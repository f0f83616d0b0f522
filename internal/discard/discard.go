// Package discard implements the C6 hallucination filter: a pure function
// that recognizes common silence-hallucination phrases STT models tend to
// produce and marks them for suppression before they reach C5.
package discard

import "strings"

// DefaultPhrases are the phrases suppressed out of the box, per spec.md
// §4.6 — empirically common Whisper hallucinations on silence.
var DefaultPhrases = []string{"thank you", "thanks", "you"}

// Filter holds the configured set of discardable phrases.
type Filter struct {
	phrases map[string]struct{}
}

// New builds a Filter from a phrase list, normalizing each entry the same
// way ShouldDiscard normalizes its input.
func New(phrases []string) *Filter {
	f := &Filter{phrases: make(map[string]struct{}, len(phrases))}
	for _, p := range phrases {
		f.phrases[normalize(p)] = struct{}{}
	}
	return f
}

// ShouldDiscard reports whether text, once normalized, matches a
// configured discard phrase verbatim.
func (f *Filter) ShouldDiscard(text string) bool {
	_, ok := f.phrases[normalize(text)]
	return ok
}

const outerPunctuation = " .,!?;:"

func normalize(text string) string {
	return strings.Trim(strings.ToLower(text), outerPunctuation)
}
