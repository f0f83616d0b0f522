package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWordMapFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wordmap.yaml")
	content := `
word_mappings:
  - phrase: "new line"
    replacement: "enter"
  - phrase: "copy that"
    replacement: "ctrl+c"
discard_phrases:
  - "thank you"
  - "um"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	pairs, discard, err := loadWordMapFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("expected 2 word pairs, got %d", len(pairs))
	}
	if pairs[0].Phrase != "new line" || pairs[0].Replacement != "enter" {
		t.Fatalf("unexpected first pair: %+v", pairs[0])
	}
	if pairs[1].Phrase != "copy that" || pairs[1].Replacement != "ctrl+c" {
		t.Fatalf("unexpected second pair: %+v", pairs[1])
	}
	if len(discard) != 2 || discard[0] != "thank you" || discard[1] != "um" {
		t.Fatalf("unexpected discard phrases: %v", discard)
	}
}

func TestLoadWordMapFile_MissingFile(t *testing.T) {
	if _, _, err := loadWordMapFile("/nonexistent/path/wordmap.yaml"); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
