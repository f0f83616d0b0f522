package discard

import "testing"

func TestShouldDiscard_DefaultPhrases(t *testing.T) {
	f := New(DefaultPhrases)

	cases := map[string]bool{
		"thank you":  true,
		"Thank You.": true,
		"thanks":     true,
		"you":        true,
		"  You!  ":   true,
		"thank you for the help": false,
		"hello":                  false,
	}
	for text, want := range cases {
		if got := f.ShouldDiscard(text); got != want {
			t.Errorf("ShouldDiscard(%q) = %v, want %v", text, got, want)
		}
	}
}

func TestShouldDiscard_CustomPhrases(t *testing.T) {
	f := New([]string{"okay bye"})
	if !f.ShouldDiscard("Okay Bye.") {
		t.Error("expected custom phrase to match case/punctuation-insensitively")
	}
	if f.ShouldDiscard("thank you") {
		t.Error("expected default phrase not to match when not configured")
	}
}

func TestShouldDiscard_EmptyFilter(t *testing.T) {
	f := New(nil)
	if f.ShouldDiscard("thank you") {
		t.Error("expected no discards with an empty phrase list")
	}
}
