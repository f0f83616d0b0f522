package vad

import (
	"errors"
	"testing"
)

type stubCoarse struct {
	isSpeech bool
	err      error
	calls    int
}

func (s *stubCoarse) Classify(pcm16 []byte, sampleRate int) (bool, error) {
	s.calls++
	return s.isSpeech, s.err
}

type stubPrecise struct {
	prob  float32
	err   error
	calls int
}

func (s *stubPrecise) Classify(samples []float32, sampleRate int) (float32, error) {
	s.calls++
	return s.prob, s.err
}

func TestGate_CoarseRejectsSkipsPrecise(t *testing.T) {
	coarse := &stubCoarse{isSpeech: false}
	precise := &stubPrecise{prob: 1}
	g := New(coarse, precise, 0.5, nil)

	v := g.Classify(make([]float32, 480), 16000)
	if v.IsSpeech {
		t.Fatal("expected non-speech when coarse rejects")
	}
	if precise.calls != 0 {
		t.Fatalf("expected precise not called, got %d calls", precise.calls)
	}
}

func TestGate_CoarseErrorFailsOpen(t *testing.T) {
	coarse := &stubCoarse{err: errors.New("boom")}
	precise := &stubPrecise{prob: 0.9}
	g := New(coarse, precise, 0.5, nil)

	v := g.Classify(make([]float32, 480), 16000)
	if precise.calls != 1 {
		t.Fatalf("expected precise to run on coarse error (fail-open), got %d calls", precise.calls)
	}
	if !v.IsSpeech {
		t.Fatal("expected speech since precise reported above threshold")
	}
}

func TestGate_PreciseErrorFailsClosed(t *testing.T) {
	coarse := &stubCoarse{isSpeech: true}
	precise := &stubPrecise{err: errors.New("boom")}
	g := New(coarse, precise, 0.5, nil)

	v := g.Classify(make([]float32, 480), 16000)
	if v.IsSpeech {
		t.Fatal("expected non-speech on precise error (fail-closed)")
	}
}

func TestGate_ThresholdComparison(t *testing.T) {
	coarse := &stubCoarse{isSpeech: true}
	precise := &stubPrecise{prob: 0.4}
	g := New(coarse, precise, 0.5, nil)

	v := g.Classify(make([]float32, 480), 16000)
	if v.IsSpeech {
		t.Fatal("expected non-speech when probability is below threshold")
	}

	precise.prob = 0.6
	v = g.Classify(make([]float32, 480), 16000)
	if !v.IsSpeech {
		t.Fatal("expected speech when probability exceeds threshold")
	}
}

func TestGate_Counters(t *testing.T) {
	coarse := &stubCoarse{isSpeech: true}
	precise := &stubPrecise{prob: 0.9}
	g := New(coarse, precise, 0.5, nil)

	g.Classify(make([]float32, 480), 16000)
	g.Classify(make([]float32, 480), 16000)

	coarseCalls, preciseCalls, speechEvents := g.Counters()
	if coarseCalls != 2 || preciseCalls != 2 || speechEvents != 2 {
		t.Fatalf("unexpected counters: coarse=%d precise=%d speech=%d", coarseCalls, preciseCalls, speechEvents)
	}
}

func TestToCanonicalInt16Window_PadsShortInput(t *testing.T) {
	samples := make([]float32, 100)
	window := toCanonicalInt16Window(samples, 16000)
	if len(window) != canonicalCoarseWindow*2 {
		t.Fatalf("expected %d bytes, got %d", canonicalCoarseWindow*2, len(window))
	}
}

func TestToCanonicalInt16Window_TruncatesLongInput(t *testing.T) {
	samples := make([]float32, 10000)
	window := toCanonicalInt16Window(samples, 16000)
	if len(window) != canonicalCoarseWindow*2 {
		t.Fatalf("expected %d bytes, got %d", canonicalCoarseWindow*2, len(window))
	}
}
