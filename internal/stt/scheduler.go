package stt

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxkeyd/voxkeyd/internal/audio"
	"github.com/voxkeyd/voxkeyd/internal/logging"
)

// Transcript is the scheduler's output, consumed by C5/C8.
type Transcript struct {
	Text       string
	IsFinal    bool
	Generation int
}

// handle tracks one utterance's scheduling state: its generation counter,
// cancellation flag, and the last emitted preview text (for dedup).
type handle struct {
	generation   atomic.Int32
	cancelled    atomic.Bool
	lastPreview  atomic.Value // string
	previewBusy  atomic.Bool
	closed       atomic.Bool
}

// Scheduler is C4: it runs preview requests while an utterance is open and
// exactly one final request when it closes, each on its own worker, guarded
// by a per-utterance generation counter. It does not throttle previews
// itself; callers space out RequestPreview calls.
type Scheduler struct {
	models  *Models
	cfg     Config
	log     logging.Logger
	emit    func(Transcript)

	mu      sync.Mutex
	handles map[*handle]struct{}
}

// Config carries the scheduler's timing knobs from spec.md §6.
type Config struct {
	RealtimeProcessingPause time.Duration // preview throttle; not read by the Scheduler, callers apply it
	PreviewBeamSize         int
	FinalBeamSize           int
	SampleRate              int
}

// NewScheduler creates a Scheduler. emit is called once per non-dropped
// Transcript, from whichever worker goroutine produced it; callers must
// make emit safe for concurrent use (C5's queue already is, being a
// channel-backed FIFO).
func NewScheduler(models *Models, cfg Config, emit func(Transcript), log logging.Logger) *Scheduler {
	if log == nil {
		log = logging.NoOp{}
	}
	if emit == nil {
		emit = func(Transcript) {}
	}
	return &Scheduler{models: models, cfg: cfg, log: log, emit: emit, handles: make(map[*handle]struct{})}
}

// Handle is an opaque per-utterance scheduling token, created on utterance
// open and passed to RequestPreview/RequestFinal/Cancel.
type Handle struct {
	h *handle
}

// Open creates scheduling state for a newly-opened utterance.
func (s *Scheduler) Open() *Handle {
	h := &handle{}
	h.lastPreview.Store("")
	s.mu.Lock()
	s.handles[h] = struct{}{}
	s.mu.Unlock()
	return &Handle{h: h}
}

// Cancel marks the utterance's handle cancelled; in-flight workers check
// this flag before submission and after model inference, and emit nothing
// once set.
func (h *Handle) Cancel() {
	h.h.cancelled.Store(true)
}

// RequestPreview runs the fast model over the utterance's current frames.
// If a preview is already running for this utterance, the request is
// dropped and the running one completes. A result is discarded if the
// utterance was cancelled or closed while the model ran, or if the text is
// empty or repeats the last emitted preview.
func (s *Scheduler) RequestPreview(h *Handle, frames []audio.Frame) {
	if h.h.cancelled.Load() || h.h.closed.Load() {
		return
	}
	if !h.h.previewBusy.CompareAndSwap(false, true) {
		// A preview is already running; this request is superseded.
		return
	}

	gen := h.h.generation.Load()
	samples := concatFrames(frames)

	go func() {
		defer h.h.previewBusy.Store(false)

		text, err := s.models.Preview.Transcribe(samples, s.cfg.SampleRate, s.cfg.PreviewBeamSize)
		if err != nil {
			s.log.Warn("preview transcription failed", "error", err)
			return
		}

		if h.h.cancelled.Load() || h.h.closed.Load() {
			return
		}
		if h.h.generation.Load() != gen {
			return
		}
		if text == "" {
			return
		}
		if prev, _ := h.h.lastPreview.Load().(string); prev == text {
			return
		}
		h.h.lastPreview.Store(text)
		s.emit(Transcript{Text: text, IsFinal: false, Generation: int(gen)})
	}()
}

// RequestFinal runs the slow model over the utterance's full frame set.
// Never dropped once the utterance has closed, unless cancelled by disarm.
// Must be called at most once per utterance, after the utterance closes.
func (s *Scheduler) RequestFinal(h *Handle, frames []audio.Frame) {
	h.h.closed.Store(true)
	if h.h.cancelled.Load() {
		s.release(h)
		return
	}

	gen := h.h.generation.Add(1)
	samples := concatFrames(frames)

	go func() {
		defer s.release(h)

		text, err := s.models.Final.Transcribe(samples, s.cfg.SampleRate, s.cfg.FinalBeamSize)
		if err != nil {
			s.log.Warn("final transcription failed", "error", err)
			return
		}
		if h.h.cancelled.Load() {
			return
		}
		if text == "" {
			return
		}
		s.emit(Transcript{Text: text, IsFinal: true, Generation: int(gen)})
	}()
}

func (s *Scheduler) release(h *Handle) {
	s.mu.Lock()
	delete(s.handles, h.h)
	s.mu.Unlock()
}

func concatFrames(frames []audio.Frame) []float32 {
	total := 0
	for _, f := range frames {
		total += len(f.Samples)
	}
	out := make([]float32, 0, total)
	for _, f := range frames {
		out = append(out, f.Samples...)
	}
	return out
}
