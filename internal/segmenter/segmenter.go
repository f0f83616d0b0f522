// Package segmenter converts per-frame VAD verdicts into utterance
// open/extend/close events (C3), grounded on the reference orchestrator's
// VAD-event state handling in managed_stream.go, adapted from its
// speech-start/speech-end callback switch into an explicit state machine.
package segmenter

import (
	"math"
	"time"

	"github.com/voxkeyd/voxkeyd/internal/audio"
	"github.com/voxkeyd/voxkeyd/internal/logging"
)

// State is the segmenter's current phase.
type State int

const (
	Idle State = iota
	Recording
	Closing
)

func (s State) String() string {
	switch s {
	case Recording:
		return "recording"
	case Closing:
		return "closing"
	default:
		return "idle"
	}
}

// Utterance is a growing append-only sequence of Frames belonging to one
// contiguous speech segment, including its PreRoll snapshot.
type Utterance struct {
	StartedAt  time.Time
	Frames     []audio.Frame
	SilenceRun int
	Generation int
	Cancelled  bool
}

// AppendFrame adds a frame to the utterance, unconditionally — the
// segmenter never drops a frame belonging to an open Utterance.
func (u *Utterance) AppendFrame(f audio.Frame) {
	u.Frames = append(u.Frames, f)
}

// Duration returns how long the utterance has been open, measured from the
// moment it opened on its first speech frame to now; pre-roll audio is not
// counted.
func (u *Utterance) Duration() time.Duration {
	return time.Since(u.StartedAt)
}

// Config carries the segmenter's timing thresholds.
type Config struct {
	SampleRate               int
	FrameSize                int
	PostSpeechSilenceSeconds float64
	MinLengthOfRecording     time.Duration
}

// silenceFramesThreshold returns ceil(sample_rate / F * post_speech_silence_duration).
func (c Config) silenceFramesThreshold() int {
	if c.FrameSize <= 0 || c.SampleRate <= 0 {
		return 1
	}
	framesPerSecond := float64(c.SampleRate) / float64(c.FrameSize)
	n := int(math.Ceil(framesPerSecond * c.PostSpeechSilenceSeconds))
	if n < 1 {
		n = 1
	}
	return n
}

// Segmenter is the C3 utterance state machine. It is not safe for
// concurrent use from multiple goroutines; the capture loop must serialize
// calls to ProcessFrame.
type Segmenter struct {
	cfg     Config
	state   State
	current *Utterance
	log     logging.Logger

	onRecordingStart func()
	onRecordingStop  func(*Utterance)
}

// New creates a Segmenter. onRecordingStart fires on every Idle→Recording
// transition; onRecordingStop fires only when the minimum-duration gate
// passes on Closing.
func New(cfg Config, onRecordingStart func(), onRecordingStop func(*Utterance), log logging.Logger) *Segmenter {
	if log == nil {
		log = logging.NoOp{}
	}
	if onRecordingStart == nil {
		onRecordingStart = func() {}
	}
	if onRecordingStop == nil {
		onRecordingStop = func(*Utterance) {}
	}
	return &Segmenter{cfg: cfg, state: Idle, onRecordingStart: onRecordingStart, onRecordingStop: onRecordingStop, log: log}
}

// State returns the current state.
func (s *Segmenter) State() State { return s.state }

// Current returns the in-progress utterance, or nil when Idle.
func (s *Segmenter) Current() *Utterance { return s.current }

// ProcessFrame feeds one classified frame through the state machine.
// preRoll is snapshotted only on the Idle→Recording transition.
func (s *Segmenter) ProcessFrame(f audio.Frame, isSpeech bool, preRoll []audio.Frame) {
	switch s.state {
	case Idle:
		if !isSpeech {
			return
		}
		s.current = &Utterance{StartedAt: time.Now()}
		for _, pf := range preRoll {
			s.current.AppendFrame(pf)
		}
		s.current.AppendFrame(f)
		s.state = Recording
		s.log.Debug("utterance opened", "preroll_frames", len(preRoll))
		s.onRecordingStart()

	case Recording:
		s.current.AppendFrame(f)
		if isSpeech {
			s.current.SilenceRun = 0
		} else {
			s.current.SilenceRun++
		}
		if s.current.SilenceRun >= s.cfg.silenceFramesThreshold() {
			s.state = Closing
			s.closeCurrent()
		}

	case Closing:
		// Unreachable in steady state: closeCurrent always returns to Idle
		// synchronously. Present for completeness.
		s.state = Idle
	}
}

// Disarm immediately discards any in-progress utterance and returns to
// Idle, without firing on_recording_stop. Used by the mode controller on
// disarm per spec.md §7.
func (s *Segmenter) Disarm() {
	if s.current != nil {
		s.current.Cancelled = true
	}
	s.current = nil
	s.state = Idle
}

func (s *Segmenter) closeCurrent() {
	u := s.current
	duration := u.Duration()
	s.current = nil
	s.state = Idle

	if duration < s.cfg.MinLengthOfRecording {
		s.log.Debug("utterance discarded below minimum duration", "duration", duration)
		return
	}
	s.log.Debug("utterance closed", "duration", duration, "frames", len(u.Frames))
	s.onRecordingStop(u)
}
