// Package agent implements the C8 agent buffer: accumulates final
// transcripts while Mode = Agent, debounces on silence, and dispatches the
// buffered text to an external command. The subprocess dispatch is
// grounded on the reference corpus's exec.CommandContext streaming pattern
// (voicetyped's piper.go TTS backend), generalized from a one-shot
// synchronous Run into a streamed, awaited command.
package agent

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/voxkeyd/voxkeyd/internal/logging"
)

// Subprocess is the C8 external interface: spawn with shell expansion,
// stream combined stdout/stderr, await exit code.
type Subprocess interface {
	Run(ctx context.Context, command string, onOutput func(line string)) error
}

// Config carries C8's timing and templating knobs from spec.md §6.
type Config struct {
	FlushTimeout    time.Duration
	CommandTemplate string // contains the literal placeholder $PROMPT
}

// Buffer is the C8 agent text accumulator.
type Buffer struct {
	cfg        Config
	subprocess Subprocess
	log        logging.Logger

	mu         sync.Mutex
	text       string
	flushTimer *time.Timer
	running    bool
}

// New creates a Buffer. subprocess defaults to an os/exec-backed runner if
// nil.
func New(cfg Config, subprocess Subprocess, log logging.Logger) *Buffer {
	if subprocess == nil {
		subprocess = NewShellSubprocess()
	}
	if log == nil {
		log = logging.NoOp{}
	}
	return &Buffer{cfg: cfg, subprocess: subprocess, log: log}
}

// Append adds a final transcript to the buffer with a single-space
// separator, cancels any pending flush, and arms a new one.
func (b *Buffer) Append(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	b.mu.Lock()
	if b.text == "" {
		b.text = text
	} else {
		b.text = b.text + " " + text
	}
	if b.flushTimer != nil {
		b.flushTimer.Stop()
	}
	b.flushTimer = time.AfterFunc(b.cfg.FlushTimeout, b.flush)
	b.mu.Unlock()
}

// Clear discards any buffered text and cancels the pending flush, used on
// disarm per spec.md §4.7.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.flushTimer != nil {
		b.flushTimer.Stop()
		b.flushTimer = nil
	}
	b.text = ""
}

func (b *Buffer) flush() {
	b.mu.Lock()
	if b.running {
		// A subprocess is already executing; the buffer keeps accumulating
		// and a new flush is armed on the next Append after it completes.
		b.mu.Unlock()
		return
	}
	text := b.text
	b.text = ""
	if text == "" {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.mu.Unlock()

	command := strings.ReplaceAll(b.cfg.CommandTemplate, "$PROMPT", text)

	go func() {
		defer func() {
			b.mu.Lock()
			b.running = false
			b.mu.Unlock()
		}()

		ctx := context.Background()
		err := b.subprocess.Run(ctx, command, func(line string) {
			b.log.Info("agent output", "line", line)
		})
		if err != nil {
			b.log.Warn("agent command failed", "error", err)
		}
	}()
}
