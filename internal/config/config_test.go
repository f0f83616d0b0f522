package config

import "testing"

func TestNormalizeThreadCounts_DefaultsFillZeroes(t *testing.T) {
	c := &Config{}
	c.normalizeThreadCounts()

	if c.NumThreads < 1 {
		t.Fatalf("expected NumThreads >= 1, got %d", c.NumThreads)
	}
	if c.VADThreads != 1 {
		t.Fatalf("expected VADThreads defaulted to 1, got %d", c.VADThreads)
	}
	if c.STTThreads != c.NumThreads {
		t.Fatalf("expected STTThreads to default to NumThreads (%d), got %d", c.NumThreads, c.STTThreads)
	}
}

func TestNormalizeThreadCounts_PreservesExplicitValues(t *testing.T) {
	c := &Config{NumThreads: 2, VADThreads: 3, STTThreads: 4}
	c.normalizeThreadCounts()

	if c.NumThreads != 2 || c.VADThreads != 3 || c.STTThreads != 4 {
		t.Fatalf("expected explicit thread counts preserved, got %+v", c)
	}
}

func TestDefaultConfig_HasRequiredDefaults(t *testing.T) {
	c := DefaultConfig()
	if c.SampleRate != 16000 {
		t.Fatalf("expected default sample rate 16000, got %d", c.SampleRate)
	}
	if c.HotkeyChord == "" {
		t.Fatal("expected a default hotkey chord")
	}
	if len(c.DiscardPhrases) == 0 {
		t.Fatal("expected default discard phrases")
	}
}
