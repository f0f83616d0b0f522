package segmenter

import (
	"testing"
	"time"

	"github.com/voxkeyd/voxkeyd/internal/audio"
)

func testConfig() Config {
	return Config{
		SampleRate:               16000,
		FrameSize:                512,
		PostSpeechSilenceSeconds: 0.1, // ceil(31.25 * 0.1) = 4 frames at 16000/512
		MinLengthOfRecording:     0,
	}
}

func frame() audio.Frame {
	return audio.Frame{Samples: make([]float32, 512), SampleRate: 16000}
}

func TestSegmenter_OpensOnFirstSpeechFrame(t *testing.T) {
	var started int
	seg := New(testConfig(), func() { started++ }, nil, nil)

	seg.ProcessFrame(frame(), false, nil)
	if seg.State() != Idle {
		t.Fatalf("expected Idle after non-speech frame, got %v", seg.State())
	}
	if started != 0 {
		t.Fatal("on_recording_start must not fire while idle on silence")
	}

	seg.ProcessFrame(frame(), true, nil)
	if seg.State() != Recording {
		t.Fatalf("expected Recording after speech frame, got %v", seg.State())
	}
	if started != 1 {
		t.Fatalf("expected on_recording_start fired once, got %d", started)
	}
}

func TestSegmenter_PreRollSnapshottedOnlyAtOpen(t *testing.T) {
	seg := New(testConfig(), nil, nil, nil)
	preRoll := []audio.Frame{frame(), frame()}

	seg.ProcessFrame(frame(), true, preRoll)
	if len(seg.Current().Frames) != 3 {
		t.Fatalf("expected preroll(2)+current(1) = 3 frames, got %d", len(seg.Current().Frames))
	}

	seg.ProcessFrame(frame(), true, []audio.Frame{frame(), frame(), frame()})
	if len(seg.Current().Frames) != 4 {
		t.Fatalf("expected preroll only applied at open, got %d frames", len(seg.Current().Frames))
	}
}

func TestSegmenter_ClosesAfterSilenceRun(t *testing.T) {
	var stopped *Utterance
	cfg := testConfig()
	seg := New(cfg, nil, func(u *Utterance) { stopped = u }, nil)

	seg.ProcessFrame(frame(), true, nil)
	threshold := cfg.silenceFramesThreshold()
	for i := 0; i < threshold-1; i++ {
		seg.ProcessFrame(frame(), false, nil)
		if seg.State() != Recording {
			t.Fatalf("expected still Recording before silence threshold, iteration %d", i)
		}
	}
	seg.ProcessFrame(frame(), false, nil)
	if seg.State() != Idle {
		t.Fatalf("expected Idle after silence threshold reached, got %v", seg.State())
	}
	if stopped == nil {
		t.Fatal("expected on_recording_stop to fire")
	}
}

func TestSegmenter_DiscardsBelowMinimumDuration(t *testing.T) {
	var stopped bool
	cfg := testConfig()
	cfg.MinLengthOfRecording = time.Hour
	seg := New(cfg, nil, func(*Utterance) { stopped = true }, nil)

	seg.ProcessFrame(frame(), true, nil)
	threshold := cfg.silenceFramesThreshold()
	for i := 0; i < threshold; i++ {
		seg.ProcessFrame(frame(), false, nil)
	}
	if stopped {
		t.Fatal("on_recording_stop must not fire for an utterance under the minimum duration")
	}
	if seg.State() != Idle {
		t.Fatalf("expected Idle even when discarded, got %v", seg.State())
	}
}

func TestSegmenter_SpeechResetsSilenceRun(t *testing.T) {
	cfg := testConfig()
	seg := New(cfg, nil, nil, nil)

	seg.ProcessFrame(frame(), true, nil)
	seg.ProcessFrame(frame(), false, nil)
	seg.ProcessFrame(frame(), true, nil)
	if seg.Current().SilenceRun != 0 {
		t.Fatalf("expected silence run reset by a speech frame, got %d", seg.Current().SilenceRun)
	}
}

func TestSegmenter_Disarm(t *testing.T) {
	var stopped bool
	seg := New(testConfig(), nil, func(*Utterance) { stopped = true }, nil)

	seg.ProcessFrame(frame(), true, nil)
	u := seg.Current()
	seg.Disarm()

	if seg.State() != Idle {
		t.Fatalf("expected Idle after disarm, got %v", seg.State())
	}
	if seg.Current() != nil {
		t.Fatal("expected no current utterance after disarm")
	}
	if !u.Cancelled {
		t.Fatal("expected the discarded utterance to be marked Cancelled")
	}
	if stopped {
		t.Fatal("disarm must not fire on_recording_stop")
	}
}

func TestSilenceFramesThreshold(t *testing.T) {
	cfg := Config{SampleRate: 16000, FrameSize: 512, PostSpeechSilenceSeconds: 0.8}
	// 16000/512 = 31.25 frames/sec * 0.8s = 25 frames
	if got := cfg.silenceFramesThreshold(); got != 25 {
		t.Fatalf("expected 25, got %d", got)
	}
}
