// Package keystroke implements the FIFO keystroke output engine (C5): word
// substitution, preview/final reconciliation, and serialized key injection.
package keystroke

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Action is a tagged variant produced by word substitution: either a
// literal chunk of text to type verbatim, or a chord to press-and-release.
type Action struct {
	Literal string
	Chord   []string // nil for a Literal action
}

// IsHotkey reports whether this action is a chord press rather than text.
func (a Action) IsHotkey() bool { return a.Chord != nil }

// WordMap is a phrase→Action substitution table. Entries are matched
// longest-phrase-first so "end of sentence" beats "end"; ties break by
// insertion order.
type WordMap struct {
	entries []wordMapEntry
}

type wordMapEntry struct {
	phrase string
	action Action
}

// NewWordMap builds a WordMap from spoken phrase -> replacement pairs.
// A replacement containing '+' and shorter than 20 runes is treated as a
// chord (split on '+'); anything else is a literal replacement.
func NewWordMap(pairs map[string]string) *WordMap {
	wm := &WordMap{}
	for phrase, replacement := range pairs {
		wm.entries = append(wm.entries, wordMapEntry{
			phrase: strings.ToLower(phrase),
			action: parseAction(replacement),
		})
	}
	// Stable sort by descending phrase length preserves map iteration's
	// arbitrary order as the tie-break "insertion order" proxy; callers
	// needing strict insertion-order ties should use NewWordMapOrdered.
	sort.SliceStable(wm.entries, func(i, j int) bool {
		return len(wm.entries[i].phrase) > len(wm.entries[j].phrase)
	})
	return wm
}

// NewWordMapOrdered builds a WordMap preserving the exact order of pairs,
// which callers should already have listed in their desired tie-break
// order; entries are then stable-sorted longest-phrase-first.
func NewWordMapOrdered(pairs []WordPair) *WordMap {
	wm := &WordMap{}
	for _, p := range pairs {
		wm.entries = append(wm.entries, wordMapEntry{
			phrase: strings.ToLower(p.Phrase),
			action: parseAction(p.Replacement),
		})
	}
	sort.SliceStable(wm.entries, func(i, j int) bool {
		return len(wm.entries[i].phrase) > len(wm.entries[j].phrase)
	})
	return wm
}

// WordPair is one ordered spoken-phrase -> replacement entry.
type WordPair struct {
	Phrase      string
	Replacement string
}

func parseAction(replacement string) Action {
	if strings.Contains(replacement, "+") && len([]rune(replacement)) < 20 {
		return Action{Chord: strings.Split(replacement, "+")}
	}
	return Action{Literal: replacement}
}

// Apply runs the substitution algorithm over text: trims one trailing
// period, matches each WordMap phrase case-insensitively as a whole word
// with optional trailing punctuation (and, for bare-punctuation
// replacements, the whitespace ahead of the phrase instead), and returns
// an ordered sequence of Literal/Hotkey items.
func (wm *WordMap) Apply(text string) []Action {
	text = trimOneTrailingPeriod(text)
	if len(wm.entries) == 0 {
		if text == "" {
			return nil
		}
		return []Action{{Literal: text}}
	}

	placeholders := make(map[string]Action)
	for i, e := range wm.entries {
		placeholder := fmt.Sprintf("\x00%d\x00", i)
		re, err := regexp.Compile(substitutionPattern(e))
		if err != nil {
			continue
		}
		if re.MatchString(text) {
			text = re.ReplaceAllString(text, placeholder)
			placeholders[placeholder] = e.action
		}
	}

	if len(placeholders) == 0 {
		if text == "" {
			return nil
		}
		return []Action{{Literal: text}}
	}

	return splitByPlaceholders(text, placeholders)
}

// attachPunctuation matches a replacement that is bare punctuation, e.g. the
// "," in {"comma": ","}. Spoken filler words like this attach directly to
// the word before them instead of leaving a separating space.
var attachPunctuation = regexp.MustCompile(`^[.,!?;:]+$`)

func attachesToPrevious(a Action) bool {
	return !a.IsHotkey() && attachPunctuation.MatchString(a.Literal)
}

// substitutionPattern builds the match pattern for one entry. Ordinary
// replacements (words, chords) only ever absorb a stray trailing punctuation
// mark already in the transcript, leaving surrounding spacing untouched.
// Bare-punctuation replacements absorb the whitespace *before* the phrase
// instead, since they're meant to attach directly to the preceding word
// rather than leave a gap where the spoken filler word used to be.
func substitutionPattern(e wordMapEntry) string {
	phrase := `\b` + regexp.QuoteMeta(e.phrase) + `\b[.,!?;:]?`
	if attachesToPrevious(e.action) {
		return `(?i)\s*` + phrase
	}
	return `(?i)` + phrase
}

func trimOneTrailingPeriod(text string) string {
	text = strings.TrimRight(text, " \t")
	if strings.HasSuffix(text, ".") {
		return strings.TrimSuffix(text, ".")
	}
	return text
}

var placeholderRe = regexp.MustCompile("\x00[0-9]+\x00")

func splitByPlaceholders(text string, placeholders map[string]Action) []Action {
	var out []Action
	last := 0
	matches := placeholderRe.FindAllStringIndex(text, -1)
	for _, m := range matches {
		if m[0] > last {
			out = append(out, Action{Literal: text[last:m[0]]})
		}
		ph := text[m[0]:m[1]]
		if a, ok := placeholders[ph]; ok {
			out = append(out, a)
		}
		last = m[1]
	}
	if last < len(text) {
		out = append(out, Action{Literal: text[last:]})
	}
	return out
}
