// Package gate implements the preload/resume gate (C9): the sole source of
// truth for whether the microphone is currently live for the rest of the
// pipeline. Transitions are driven only by the mode controller (C7), never
// by the segmenter or the transcription scheduler.
package gate

import "sync/atomic"

// State is one of the two gate states.
type State int32

const (
	// Paused means frames are dropped by the capture loop before any VAD call.
	Paused State = iota
	// Resumed means frames flow normally into the pre-roll and the segmenter.
	Resumed
)

func (s State) String() string {
	if s == Resumed {
		return "resumed"
	}
	return "paused"
}

// Gate is a lock-free two-state switch checked on every captured frame.
type Gate struct {
	state atomic.Int32
}

// New returns a Gate starting in the Paused state, matching a freshly
// started, disarmed system.
func New() *Gate {
	g := &Gate{}
	g.state.Store(int32(Paused))
	return g
}

// Resume flips the gate to Resumed. Called after the arming delay elapses.
func (g *Gate) Resume() { g.state.Store(int32(Resumed)) }

// Pause flips the gate to Paused. Called immediately on disarm.
func (g *Gate) Pause() { g.state.Store(int32(Paused)) }

// Current returns the current state.
func (g *Gate) Current() State { return State(g.state.Load()) }

// IsPaused reports whether audio frames are currently being dropped.
func (g *Gate) IsPaused() bool { return g.Current() == Paused }
