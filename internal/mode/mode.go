// Package mode implements the C7 mode/hotkey controller: single/double-tap
// detection on one global chord, LISTEN<->AGENT rotation, and arm/disarm
// transitions driving C9's gate.
package mode

import (
	"sync"
	"time"

	"github.com/voxkeyd/voxkeyd/internal/audio"
	"github.com/voxkeyd/voxkeyd/internal/gate"
	"github.com/voxkeyd/voxkeyd/internal/keystroke"
	"github.com/voxkeyd/voxkeyd/internal/logging"
	"github.com/voxkeyd/voxkeyd/internal/segmenter"
)

// Mode is the active operating mode.
type Mode int

const (
	Listen Mode = iota
	Agent
)

func (m Mode) String() string {
	if m == Agent {
		return "agent"
	}
	return "listen"
}

// HotkeyRegistrar is the C7 external interface: register a global chord,
// receive a callback on every press. There is no global-hotkey library in
// the reference corpus (platform hotkey hooking is explicitly out of scope
// per spec.md §1/§6), so the only concrete implementation shipped here is
// a manual-trigger stub for tests and headless runs; real deployment wires
// a platform-specific registrar behind this interface.
type HotkeyRegistrar interface {
	Register(chord string, onPress func()) error
}

// ManualRegistrar lets callers (and tests) fire the hotkey programmatically,
// e.g. from a CLI debug command, instead of a real OS-level hook.
type ManualRegistrar struct {
	onPress func()
}

func (m *ManualRegistrar) Register(chord string, onPress func()) error {
	m.onPress = onPress
	return nil
}

// Trigger simulates one hotkey press.
func (m *ManualRegistrar) Trigger() {
	if m.onPress != nil {
		m.onPress()
	}
}

// Config carries C7's timing knobs from spec.md §6/§4.7.
type Config struct {
	Chord               string
	DoubleTapWindow     time.Duration
	ListeningStateDelay time.Duration
	ListeningStartSound string
	ListeningStopSound  string
}

// Controller owns HotkeyState, Mode, and drives the gate, segmenter, and
// keystroke engine on arm/disarm/rotate transitions.
type Controller struct {
	cfg Config
	log logging.Logger

	gate      *gate.Gate
	seg       *segmenter.Segmenter
	preRoll   *audio.PreRoll
	keystroke *keystroke.Engine
	sound     Sound
	onModeChange  func(Mode)
	cancelCurrent func()

	mu          sync.Mutex
	mode        Mode
	armed       bool
	lastTapAt   time.Time
	pendingTap  *time.Timer
}

// Sound is the C7 feedback-sound interface.
type Sound interface {
	Play(path string)
}

// New creates a disarmed Controller in Listen mode. cancelCurrent, if
// non-nil, is invoked on disarm and mode-rotate to cancel whatever
// preview/final transcription is still in flight for the current utterance,
// so a stale result can never reach the keystroke engine after the user has
// already disarmed (spec.md §4.7/§4.4, scenario S6).
func New(cfg Config, g *gate.Gate, seg *segmenter.Segmenter, preRoll *audio.PreRoll, ks *keystroke.Engine, sound Sound, onModeChange func(Mode), cancelCurrent func(), log logging.Logger) *Controller {
	if log == nil {
		log = logging.NoOp{}
	}
	if sound == nil {
		sound = noOpSound{}
	}
	if onModeChange == nil {
		onModeChange = func(Mode) {}
	}
	if cancelCurrent == nil {
		cancelCurrent = func() {}
	}
	return &Controller{cfg: cfg, log: log, gate: g, seg: seg, preRoll: preRoll, keystroke: ks, sound: sound, onModeChange: onModeChange, cancelCurrent: cancelCurrent, mode: Listen}
}

type noOpSound struct{}

func (noOpSound) Play(string) {}

// Mode returns the current mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Armed reports whether the system is currently armed.
func (c *Controller) Armed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armed
}

// Register wires this controller's OnPress as the reg's hotkey callback.
func (c *Controller) Register(reg HotkeyRegistrar) error {
	return reg.Register(c.cfg.Chord, c.OnPress)
}

// OnPress implements the single/double-tap dispatch of spec.md §4.7.
func (c *Controller) OnPress() {
	c.mu.Lock()
	now := time.Now()
	dt := now.Sub(c.lastTapAt)
	c.lastTapAt = now

	if c.pendingTap != nil {
		c.pendingTap.Stop()
		c.pendingTap = nil
	}

	if !c.lastTapAt.IsZero() && dt > 0 && dt < c.cfg.DoubleTapWindow {
		c.mu.Unlock()
		c.rotateMode()
		return
	}

	c.pendingTap = time.AfterFunc(c.cfg.DoubleTapWindow, c.toggleArmed)
	c.mu.Unlock()
}

func (c *Controller) toggleArmed() {
	c.mu.Lock()
	armed := c.armed
	c.mu.Unlock()

	if armed {
		c.disarm()
	} else {
		c.arm()
	}
}

func (c *Controller) rotateMode() {
	c.mu.Lock()
	wasArmed := c.armed
	if c.mode == Listen {
		c.mode = Agent
	} else {
		c.mode = Listen
	}
	newMode := c.mode
	c.mu.Unlock()

	// Flush any residual LISTEN-mode preview before the new mode is active.
	c.cancelCurrent()
	c.keystroke.FlushPreview()
	c.onModeChange(newMode)
	c.log.Info("mode rotated", "mode", newMode.String())

	if !wasArmed {
		c.arm()
	}
}

func (c *Controller) arm() {
	c.mu.Lock()
	c.armed = true
	c.mu.Unlock()

	c.sound.Play(c.cfg.ListeningStartSound)
	c.log.Info("arming", "delay", c.cfg.ListeningStateDelay)
	time.AfterFunc(c.cfg.ListeningStateDelay, func() {
		c.gate.Resume()
	})
}

func (c *Controller) disarm() {
	c.mu.Lock()
	c.armed = false
	c.mu.Unlock()

	c.gate.Pause()
	if u := c.seg.Current(); u != nil {
		u.Cancelled = true
	}
	c.cancelCurrent()
	c.seg.Disarm()
	c.preRoll.Clear()
	c.keystroke.FlushPreview()
	c.sound.Play(c.cfg.ListeningStopSound)
	c.log.Info("disarmed")
}
