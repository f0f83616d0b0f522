// voxkeyd is a voice-driven keyboard: continuous microphone capture feeds a
// two-stage VAD gate, an utterance segmenter, and a dual-model preview/final
// transcription scheduler, whose output is typed via a serialized keystroke
// engine. A single global hotkey arms/disarms listening and rotates between
// LISTEN and AGENT modes.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxkeyd/voxkeyd/internal/agent"
	"github.com/voxkeyd/voxkeyd/internal/audio"
	"github.com/voxkeyd/voxkeyd/internal/config"
	"github.com/voxkeyd/voxkeyd/internal/discard"
	"github.com/voxkeyd/voxkeyd/internal/gate"
	"github.com/voxkeyd/voxkeyd/internal/keystroke"
	"github.com/voxkeyd/voxkeyd/internal/logging"
	"github.com/voxkeyd/voxkeyd/internal/mode"
	"github.com/voxkeyd/voxkeyd/internal/segmenter"
	"github.com/voxkeyd/voxkeyd/internal/stt"
	"github.com/voxkeyd/voxkeyd/internal/vad"
)

// handleHolder guards the current utterance's *stt.Handle, since it's
// written by the capture/segmenter goroutine but read (and cancelled) from
// the mode controller's hotkey/timer goroutines.
type handleHolder struct {
	mu sync.Mutex
	h  *stt.Handle
}

func (s *handleHolder) set(h *stt.Handle) {
	s.mu.Lock()
	s.h = h
	s.mu.Unlock()
}

func (s *handleHolder) get() *stt.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.h
}

func (s *handleHolder) cancel() {
	s.mu.Lock()
	h := s.h
	s.mu.Unlock()
	if h != nil {
		h.Cancel()
	}
}

func main() {
	if err := run(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.ParseFlags()
	if err != nil {
		return err
	}

	log := logging.NewStd(cfg.Verbose)
	log.Info("voxkeyd starting", "sample_rate", cfg.SampleRate, "provider", cfg.Provider)

	g := gate.New()

	coarse := vad.NewDefaultCoarse(cfg.WebrtcSensitivity)
	precise, err := vad.NewSileroPrecise(vad.SileroConfig{
		ModelPath:          cfg.VADModel,
		Threshold:          float32(cfg.SileroSensitivity),
		MinSilenceDuration: float32(cfg.PostSpeechSilenceDuration),
		WindowSize:         512,
	})
	if err != nil {
		return err
	}
	defer precise.Close()
	vadGate := vad.New(coarse, precise, float32(cfg.SileroSensitivity), log)

	models, err := stt.NewModels(stt.WhisperConfig{
		Encoder:    cfg.WhisperEncoder,
		Decoder:    cfg.WhisperDecoder,
		Tokens:     cfg.WhisperTokens,
		Language:   cfg.STTLanguage,
		Provider:   cfg.Provider,
		NumThreads: cfg.STTThreads,
		Debug:      cfg.Verbose,
	}, cfg.FinalBeamSize)
	if err != nil {
		return err
	}

	sound, err := audio.NewPlayer(log)
	if err != nil {
		return err
	}
	defer sound.Close()

	capturer, err := audio.NewCapturer(cfg.SampleRate, cfg.BufferSize, time.Duration(cfg.PreRecordingBufferSeconds*float64(time.Second)), g, log)
	if err != nil {
		return err
	}
	defer capturer.Close()

	wordMap := keystroke.NewWordMapOrdered(cfg.WordMappings)
	ks := keystroke.New(keystroke.Config{
		TypingDelay:         time.Duration(cfg.TypingDelayMs) * time.Millisecond,
		KeyHoldDelay:        time.Duration(cfg.KeyHoldMs) * time.Millisecond,
		TypeRealtimePreview: cfg.TypeRealtimePreview,
	}, keystroke.NoOpInjector{}, wordMap, log)
	defer ks.Close()

	discardFilter := discard.New(cfg.DiscardPhrases)

	agentBuffer := agent.New(agent.Config{
		FlushTimeout:    time.Duration(cfg.AgentBufferTimeoutMs) * time.Millisecond,
		CommandTemplate: cfg.AgentCommandTemplate,
	}, agent.NewShellSubprocess(), log)

	var currentHandle handleHolder
	var currentMode mode.Mode

	emitTranscript := func(t stt.Transcript) {
		if t.IsFinal {
			if discardFilter.ShouldDiscard(t.Text) {
				log.Debug("discarded hallucinated transcript", "text", t.Text)
				return
			}
			if currentMode == mode.Agent {
				agentBuffer.Append(t.Text)
				return
			}
			ks.TypeFinal(t.Text)
			return
		}
		ks.TypePreview(t.Text)
	}

	scheduler := stt.NewScheduler(models, stt.Config{
		RealtimeProcessingPause: time.Duration(cfg.RealtimeProcessingPauseMs) * time.Millisecond,
		PreviewBeamSize:         cfg.PreviewBeamSize,
		FinalBeamSize:           cfg.FinalBeamSize,
		SampleRate:              cfg.SampleRate,
	}, emitTranscript, log)

	var lastPreviewAt time.Time
	seg := segmenter.New(segmenter.Config{
		SampleRate:               cfg.SampleRate,
		FrameSize:                cfg.BufferSize,
		PostSpeechSilenceSeconds: cfg.PostSpeechSilenceDuration,
		MinLengthOfRecording:     time.Duration(cfg.MinLengthOfRecording * float64(time.Second)),
	}, func() {
		currentHandle.set(scheduler.Open())
	}, func(u *segmenter.Utterance) {
		if h := currentHandle.get(); h != nil {
			scheduler.RequestFinal(h, u.Frames)
		}
	}, log)

	modeCtl := mode.New(mode.Config{
		Chord:               cfg.HotkeyChord,
		DoubleTapWindow:     time.Duration(cfg.DoubleTapWindowMs) * time.Millisecond,
		ListeningStateDelay: time.Duration(cfg.ListeningStateDelayMs) * time.Millisecond,
		ListeningStartSound: cfg.ListeningStartSoundPath,
		ListeningStopSound:  cfg.ListeningStopSoundPath,
	}, g, seg, capturer.PreRoll(), ks, sound, func(m mode.Mode) {
		currentMode = m
		if m == mode.Listen {
			agentBuffer.Clear()
		}
	}, func() {
		// Disarm (and mode rotation) drops in-flight transcription and any
		// partially-buffered agent text along with its pending flush.
		currentHandle.cancel()
		agentBuffer.Clear()
	}, log)

	hotkeyReg := &mode.ManualRegistrar{}
	if err := modeCtl.Register(hotkeyReg); err != nil {
		log.Warn("hotkey registration failed, system cannot be armed via hotkey", "error", err)
	}

	previewPause := time.Duration(cfg.RealtimeProcessingPauseMs) * time.Millisecond
	onFrame := func(f audio.Frame) {
		v := vadGate.Classify(f.Samples, f.SampleRate)
		// The capturer pushes f into the pre-roll before calling onFrame, so
		// the snapshot ends with f itself; drop it so the segmenter does not
		// append the onset frame twice.
		preRoll := capturer.PreRoll().Snapshot()
		if n := len(preRoll); n > 0 {
			preRoll = preRoll[:n-1]
		}
		seg.ProcessFrame(f, v.IsSpeech, preRoll)
		if h := currentHandle.get(); seg.State() == segmenter.Recording && h != nil {
			if time.Since(lastPreviewAt) >= previewPause {
				lastPreviewAt = time.Now()
				scheduler.RequestPreview(h, seg.Current().Frames)
			}
		}
	}

	if err := capturer.Start(onFrame); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eg, egCtx := errgroup.WithContext(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	eg.Go(func() error {
		select {
		case <-sigChan:
			log.Info("shutting down")
		case <-egCtx.Done():
		}
		capturer.Stop()
		cancel()
		return nil
	})

	return eg.Wait()
}
