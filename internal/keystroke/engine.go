package keystroke

import (
	"time"

	"github.com/voxkeyd/voxkeyd/internal/logging"
)

// task is one queued keystroke operation. Exactly one of its fields is
// meaningful, discriminated by kind.
type task struct {
	kind      taskKind
	text      string
	backspace int
}

type taskKind int

const (
	taskTypeFinal taskKind = iota
	taskTypePreview
	taskBackspace
	taskFlushPreview
)

// PreviewState tracks how many characters are currently on-screen as
// tentative preview, so they can be retracted. Owned exclusively by the
// engine's single consumer goroutine.
type PreviewState struct {
	LengthTyped int
	LastText    string
}

// Config carries C5's timing knobs.
type Config struct {
	TypingDelay        time.Duration
	KeyHoldDelay       time.Duration
	TypeRealtimePreview bool
}

// Engine is the C5 keystroke engine: a single FIFO consumer draining a
// queue of TypeFinal/TypePreview/Backspace tasks so keystrokes from
// concurrent preview/final producers never interleave at the character
// level.
type Engine struct {
	cfg      Config
	injector Injector
	wordMap  *WordMap
	log      logging.Logger

	queue   chan task
	preview PreviewState

	done chan struct{}
}

// New creates an Engine and starts its consumer goroutine. Call Close to
// stop it.
func New(cfg Config, injector Injector, wordMap *WordMap, log logging.Logger) *Engine {
	if injector == nil {
		injector = NoOpInjector{}
	}
	if wordMap == nil {
		wordMap = NewWordMap(nil)
	}
	if log == nil {
		log = logging.NoOp{}
	}
	e := &Engine{
		cfg:      cfg,
		injector: injector,
		wordMap:  wordMap,
		log:      log,
		queue:    make(chan task, 64),
		done:     make(chan struct{}),
	}
	go e.run()
	return e
}

// TypeFinal enqueues a final commit: retract any outstanding preview, apply
// word substitutions, type the result, and append a trailing space.
func (e *Engine) TypeFinal(text string) {
	e.queue <- task{kind: taskTypeFinal, text: text}
}

// TypePreview enqueues a raw preview update. No-op when
// type_realtime_preview is disabled.
func (e *Engine) TypePreview(text string) {
	if !e.cfg.TypeRealtimePreview {
		return
	}
	e.queue <- task{kind: taskTypePreview, text: text}
}

// Backspace enqueues n sequential backspace presses; n <= 0 enqueues
// nothing. The mode controller retracts stale previews with FlushPreview,
// not with Backspace.
func (e *Engine) Backspace(n int) {
	if n <= 0 {
		return
	}
	e.queue <- task{kind: taskBackspace, backspace: n}
}

// FlushPreview retracts any outstanding preview text without typing a
// replacement, used on mode rotation and disarm per spec.md §4.7.
func (e *Engine) FlushPreview() {
	e.queue <- task{kind: taskFlushPreview}
}

// Close stops the consumer goroutine once the queue drains.
func (e *Engine) Close() {
	close(e.queue)
	<-e.done
}

func (e *Engine) run() {
	defer close(e.done)
	for t := range e.queue {
		switch t.kind {
		case taskTypeFinal:
			e.handleTypeFinal(t.text)
		case taskTypePreview:
			e.handleTypePreview(t.text)
		case taskBackspace:
			e.pressBackspace(t.backspace)
		case taskFlushPreview:
			if e.preview.LengthTyped > 0 {
				e.pressBackspace(e.preview.LengthTyped)
				e.preview = PreviewState{}
			}
		}
	}
}

func (e *Engine) handleTypeFinal(text string) {
	if e.preview.LengthTyped > 0 {
		e.pressBackspace(e.preview.LengthTyped)
		e.preview = PreviewState{}
	}
	actions := e.wordMap.Apply(text)
	for _, a := range actions {
		if a.IsHotkey() {
			e.pressChord(a.Chord)
			continue
		}
		e.typeLiteral(a.Literal)
	}
	e.pressSpace()
}

func (e *Engine) handleTypePreview(text string) {
	if e.preview.LengthTyped > 0 {
		e.pressBackspace(e.preview.LengthTyped)
	}
	e.typeLiteral(text)
	e.preview = PreviewState{LengthTyped: len([]rune(text)), LastText: text}
}

func (e *Engine) pressBackspace(n int) {
	for i := 0; i < n; i++ {
		e.injector.PressKey(KeyBackspace)
		e.sleepHold()
		e.injector.ReleaseKey(KeyBackspace)
		e.sleepTypingDelay()
	}
}

// typeLiteral types text character by character; space is always the
// special Space key, never the literal ' ' character, per spec.md §4.5.
func (e *Engine) typeLiteral(text string) {
	for _, r := range text {
		if r == ' ' {
			e.pressSpace()
			continue
		}
		e.injector.PressChar(r)
		e.sleepHold()
		e.injector.ReleaseChar(r)
		e.sleepTypingDelay()
	}
}

func (e *Engine) pressSpace() {
	e.injector.PressKey(KeySpace)
	e.sleepHold()
	e.injector.ReleaseKey(KeySpace)
	e.sleepTypingDelay()
}

// pressChord presses modifiers and the final key in listed order with a
// small inter-press hold, releasing in reverse order.
func (e *Engine) pressChord(chord []string) {
	for _, k := range chord {
		e.injector.PressKey(Key(k))
		e.sleepHold()
	}
	for i := len(chord) - 1; i >= 0; i-- {
		e.injector.ReleaseKey(Key(chord[i]))
	}
	e.sleepTypingDelay()
}

func (e *Engine) sleepHold() {
	if e.cfg.KeyHoldDelay > 0 {
		time.Sleep(e.cfg.KeyHoldDelay)
	}
}

func (e *Engine) sleepTypingDelay() {
	if e.cfg.TypingDelay > 0 {
		time.Sleep(e.cfg.TypingDelay)
	}
}
