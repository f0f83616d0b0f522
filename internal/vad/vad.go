// Package vad implements the two-stage voice-activity gate (C1): a cheap
// coarse classifier cheaply culls obvious silence, and an expensive precise
// classifier only runs when coarse thinks there might be speech.
package vad

import (
	"sync/atomic"

	"github.com/voxkeyd/voxkeyd/internal/logging"
)

// canonicalCoarseWindow is the coarse stage's fixed input window: 480
// samples at 16kHz, per spec.md §4.1.
const canonicalCoarseWindow = 480

// Verdict is the gate's per-frame decision.
type Verdict struct {
	IsSpeech   bool
	Confidence float32 // 0 when coarse rejected without consulting precise.
}

// Coarse is the cheap, per-frame classifier. It sees exactly one canonical
// int16-encoded sub-window (480 samples at 16kHz, zero-padded/truncated).
type Coarse interface {
	Classify(pcm16 []byte, sampleRate int) (bool, error)
}

// Precise is the expensive classifier, run only when Coarse says speech. It
// returns a raw speech probability over the full frame.
type Precise interface {
	Classify(samples []float32, sampleRate int) (float32, error)
}

// Gate composes a Coarse and Precise stage into the two-stage VAD of
// spec.md §4.1. It is single-threaded; reentrancy is not required.
type Gate struct {
	coarse    Coarse
	precise   Precise
	threshold float32
	log       logging.Logger

	coarseCalls  atomic.Uint64
	preciseCalls atomic.Uint64
	speechEvents atomic.Uint64
}

// New creates a Gate. threshold is silero_sensitivity from spec.md §6: the
// precise stage's probability must exceed it for is_speech to be true.
func New(coarse Coarse, precise Precise, threshold float32, log logging.Logger) *Gate {
	if log == nil {
		log = logging.NoOp{}
	}
	return &Gate{coarse: coarse, precise: precise, threshold: threshold, log: log}
}

// Classify runs the two-stage decision for one frame of float32 samples.
func (g *Gate) Classify(samples []float32, sampleRate int) Verdict {
	g.coarseCalls.Add(1)

	window := toCanonicalInt16Window(samples, sampleRate)
	isSpeech, err := g.coarse.Classify(window, 16000)
	if err != nil {
		// Coarse failure falls through to precise (fail-open): bias toward
		// surfacing audio to the segmenter rather than silently dropping it.
		g.log.Warn("coarse vad error, falling through to precise", "error", err)
		isSpeech = true
	}
	if !isSpeech {
		return Verdict{IsSpeech: false, Confidence: 0}
	}

	g.preciseCalls.Add(1)
	prob, err := g.precise.Classify(samples, sampleRate)
	if err != nil {
		// Precise failure degrades to non-speech (conservative).
		g.log.Warn("precise vad error, degrading to non-speech", "error", err)
		return Verdict{IsSpeech: false, Confidence: 0}
	}

	v := Verdict{IsSpeech: prob > g.threshold, Confidence: prob}
	if v.IsSpeech {
		g.speechEvents.Add(1)
	}
	return v
}

// Counters returns the gate's observability counters. Never load-bearing.
func (g *Gate) Counters() (coarseCalls, preciseCalls, speechEvents uint64) {
	return g.coarseCalls.Load(), g.preciseCalls.Load(), g.speechEvents.Load()
}

// toCanonicalInt16Window converts samples to the coarse stage's canonical
// 480-sample-at-16kHz int16 little-endian window, zero-padding or
// truncating as needed. Samples are assumed already at 16kHz; downstream
// capture resamples before frames reach the gate.
func toCanonicalInt16Window(samples []float32, sampleRate int) []byte {
	n := canonicalCoarseWindow
	buf := make([]byte, n*2)
	limit := len(samples)
	if limit > n {
		limit = n
	}
	for i := 0; i < limit; i++ {
		s := samples[i]
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * 32767)
		buf[i*2] = byte(v)
		buf[i*2+1] = byte(v >> 8)
	}
	return buf
}
