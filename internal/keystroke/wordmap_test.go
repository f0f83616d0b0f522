package keystroke

import "testing"

func TestParseAction_ChordVsLiteral(t *testing.T) {
	a := parseAction("ctrl+c")
	if !a.IsHotkey() {
		t.Fatal("expected ctrl+c to parse as a chord")
	}
	if len(a.Chord) != 2 || a.Chord[0] != "ctrl" || a.Chord[1] != "c" {
		t.Fatalf("unexpected chord split: %v", a.Chord)
	}

	b := parseAction("new paragraph")
	if b.IsHotkey() {
		t.Fatal("expected literal replacement without '+' to stay literal")
	}
	if b.Literal != "new paragraph" {
		t.Fatalf("unexpected literal: %q", b.Literal)
	}
}

func TestParseAction_LongPlusStringStaysLiteral(t *testing.T) {
	// contains '+' but >= 20 runes: treated as literal text
	a := parseAction("this message has a plus + sign in it")
	if a.IsHotkey() {
		t.Fatal("expected long string with '+' to stay literal")
	}
}

func TestWordMap_Apply_NoMatch(t *testing.T) {
	wm := NewWordMapOrdered(nil)
	actions := wm.Apply("hello world")
	if len(actions) != 1 || actions[0].Literal != "hello world" {
		t.Fatalf("expected passthrough literal, got %v", actions)
	}
}

func TestWordMap_Apply_TrimsOneTrailingPeriod(t *testing.T) {
	wm := NewWordMapOrdered(nil)
	actions := wm.Apply("hello world.")
	if len(actions) != 1 || actions[0].Literal != "hello world" {
		t.Fatalf("expected trailing period trimmed, got %v", actions)
	}
}

func TestWordMap_Apply_LongestPhraseFirst(t *testing.T) {
	wm := NewWordMapOrdered([]WordPair{
		{Phrase: "new line", Replacement: "enter"},
		{Phrase: "new line please", Replacement: "double enter"},
	})

	actions := wm.Apply("new line please now")
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d: %v", len(actions), actions)
	}
	if actions[0].Literal != "double enter" {
		t.Fatalf("expected longest phrase to win, got %q", actions[0].Literal)
	}
	if actions[1].Literal != " now" {
		t.Fatalf("expected remaining literal tail, got %q", actions[1].Literal)
	}
}

func TestWordMap_Apply_ChordSubstitution(t *testing.T) {
	wm := NewWordMapOrdered([]WordPair{{Phrase: "copy that", Replacement: "ctrl+c"}})
	actions := wm.Apply("please copy that now")

	if len(actions) != 3 {
		t.Fatalf("expected literal/chord/literal, got %d: %v", len(actions), actions)
	}
	if actions[0].Literal != "please " {
		t.Fatalf("unexpected prefix: %q", actions[0].Literal)
	}
	if !actions[1].IsHotkey() {
		t.Fatal("expected middle action to be a chord")
	}
	if actions[2].Literal != " now" {
		t.Fatalf("unexpected suffix: %q", actions[2].Literal)
	}
}

func TestWordMap_Apply_CaseInsensitiveWholeWord(t *testing.T) {
	wm := NewWordMapOrdered([]WordPair{{Phrase: "new line", Replacement: "enter"}})
	actions := wm.Apply("Please New Line now")
	if len(actions) != 3 || actions[1].Literal != "enter" {
		t.Fatalf("expected case-insensitive match, got %v", actions)
	}
}

func TestWordMap_Apply_WholeWordOnly(t *testing.T) {
	wm := NewWordMapOrdered([]WordPair{{Phrase: "new", Replacement: "enter"}})

	// "renewed" contains "new" as a substring but not as a whole word.
	actions := wm.Apply("it was renewed")
	if len(actions) != 1 || actions[0].Literal != "it was renewed" {
		t.Fatalf("expected no match on partial word, got %v", actions)
	}

	actions = wm.Apply("it is new")
	if len(actions) != 2 || actions[1].Literal != "enter" {
		t.Fatalf("expected whole-word match, got %v", actions)
	}
}

func TestWordMap_Apply_PunctuationAttachesToPrecedingWord(t *testing.T) {
	wm := NewWordMapOrdered([]WordPair{{Phrase: "comma", Replacement: ","}})
	actions := wm.Apply("hello comma world")

	if len(actions) != 3 {
		t.Fatalf("expected literal/punctuation/literal, got %d: %v", len(actions), actions)
	}
	if actions[0].Literal != "hello" {
		t.Fatalf("expected the space before the filler word absorbed, got %q", actions[0].Literal)
	}
	if actions[1].Literal != "," {
		t.Fatalf("expected the comma substitution, got %q", actions[1].Literal)
	}
	if actions[2].Literal != " world" {
		t.Fatalf("expected the space after the filler word preserved, got %q", actions[2].Literal)
	}
}

func TestWordMap_Apply_EmptyAfterTrim(t *testing.T) {
	wm := NewWordMapOrdered(nil)
	if actions := wm.Apply("."); actions != nil {
		t.Fatalf("expected nil actions for empty text, got %v", actions)
	}
}
