package stt

import (
	"sync"
	"testing"
	"time"

	"github.com/voxkeyd/voxkeyd/internal/audio"
)

type fakeModel struct {
	mu       sync.Mutex
	text     string
	err      error
	delay    time.Duration
	calls    int
}

func (f *fakeModel) Transcribe(samples []float32, sampleRate int, beamSize int) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.text, f.err
}

func (f *fakeModel) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func framesOf(n int) []audio.Frame {
	return []audio.Frame{{Samples: make([]float32, n), SampleRate: 16000}}
}

func waitForTranscripts(t *testing.T, got *[]Transcript, mu *sync.Mutex, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		l := len(*got)
		mu.Unlock()
		if l >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d transcripts", n)
}

func newTestScheduler(preview, final Model) (*Scheduler, *[]Transcript, *sync.Mutex) {
	var mu sync.Mutex
	var got []Transcript
	models := &Models{Preview: preview, Final: final}
	s := NewScheduler(models, Config{SampleRate: 16000, PreviewBeamSize: 1, FinalBeamSize: 4}, func(t Transcript) {
		mu.Lock()
		got = append(got, t)
		mu.Unlock()
	}, nil)
	return s, &got, &mu
}

func TestScheduler_FinalEmitsTranscript(t *testing.T) {
	final := &fakeModel{text: "hello world"}
	s, got, mu := newTestScheduler(&fakeModel{text: "hel"}, final)

	h := s.Open()
	s.RequestFinal(h, framesOf(512))

	waitForTranscripts(t, got, mu, 1)
	mu.Lock()
	defer mu.Unlock()
	if (*got)[0].Text != "hello world" || !(*got)[0].IsFinal {
		t.Fatalf("unexpected transcript: %+v", (*got)[0])
	}
}

func TestScheduler_CancelledFinalNeverInvokesModel(t *testing.T) {
	final := &fakeModel{text: "should not appear"}
	s, got, mu := newTestScheduler(&fakeModel{}, final)

	h := s.Open()
	h.Cancel()
	s.RequestFinal(h, framesOf(512))

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(*got) != 0 {
		t.Fatalf("expected no transcript for a cancelled utterance, got %v", *got)
	}
	if final.callCount() != 0 {
		t.Fatalf("expected the final model never invoked once cancelled, got %d calls", final.callCount())
	}
}

func TestScheduler_PreviewSupersededWhilePreviewBusy(t *testing.T) {
	preview := &fakeModel{text: "first", delay: 100 * time.Millisecond}
	s, got, mu := newTestScheduler(preview, &fakeModel{})

	h := s.Open()
	s.RequestPreview(h, framesOf(512))
	time.Sleep(5 * time.Millisecond) // ensure the first request has marked previewBusy
	s.RequestPreview(h, framesOf(512))

	time.Sleep(200 * time.Millisecond)
	if preview.callCount() != 1 {
		t.Fatalf("expected only one preview call while busy, got %d", preview.callCount())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(*got) != 1 {
		t.Fatalf("expected exactly one preview transcript emitted, got %v", *got)
	}
}

func TestScheduler_PreviewDropsDuplicateText(t *testing.T) {
	preview := &fakeModel{text: "same"}
	s, got, mu := newTestScheduler(preview, &fakeModel{})

	h := s.Open()
	s.RequestPreview(h, framesOf(512))
	waitForTranscripts(t, got, mu, 1)

	s.RequestPreview(h, framesOf(512))
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(*got) != 1 {
		t.Fatalf("expected duplicate preview text to be dropped, got %v", *got)
	}
}

func TestScheduler_PreviewDroppedAfterClose(t *testing.T) {
	preview := &fakeModel{text: "late", delay: 30 * time.Millisecond}
	s, got, mu := newTestScheduler(preview, &fakeModel{text: "final text"})

	h := s.Open()
	s.RequestPreview(h, framesOf(512))
	s.RequestFinal(h, framesOf(512))

	waitForTranscripts(t, got, mu, 1)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, tr := range *got {
		if !tr.IsFinal {
			t.Fatalf("expected no preview transcript to survive after close, got %v", *got)
		}
	}
}

func TestScheduler_FinalWithEmptyTextEmitsNothing(t *testing.T) {
	s, got, mu := newTestScheduler(&fakeModel{}, &fakeModel{text: ""})

	h := s.Open()
	s.RequestFinal(h, framesOf(512))

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(*got) != 0 {
		t.Fatalf("expected no transcript for empty final text, got %v", *got)
	}
}

func TestConcatFrames(t *testing.T) {
	frames := []audio.Frame{
		{Samples: []float32{1, 2}},
		{Samples: []float32{3}},
	}
	out := concatFrames(frames)
	if len(out) != 3 || out[0] != 1 || out[1] != 2 || out[2] != 3 {
		t.Fatalf("unexpected concat result: %v", out)
	}
}
