// Package stt implements the dual-model transcription scheduler (C4):
// a fast, throttled preview pass and a slow, authoritative final pass over
// the same growing per-utterance audio buffer. Grounded on the reference
// assistant's internal/stt/recognizer.go, split into a reusable Model
// wrapping sherpa-onnx's Whisper offline recognizer and a Scheduler that
// generalizes the reference's single-pass Decode call into two
// concurrently-running, generation-guarded passes.
package stt

import (
	"fmt"
	"strings"
	"sync"

	"github.com/voxkeyd/voxkeyd/internal/sherpa"
)

// Model is the STT interface C4 requires: decode a float32 PCM buffer at
// the given sample rate into text, using a beam size that trades latency
// (preview, small/greedy) for accuracy (final, wider beam).
type Model interface {
	Transcribe(samples []float32, sampleRate int, beamSize int) (string, error)
}

// WhisperConfig mirrors the reference assistant's Whisper model
// configuration. It has no beam-size field; the final beam size is passed
// to NewModels separately.
type WhisperConfig struct {
	Encoder    string
	Decoder    string
	Tokens     string
	Language   string
	Provider   string
	NumThreads int
	Debug      bool
}

// WhisperModel is the default Model, wrapping sherpa-onnx's offline
// Whisper recognizer. sherpa-onnx recognizers are not safe for concurrent
// Decode calls on the same instance in general, but OfflineStream/Decode
// pairs are independent per call here since each Transcribe creates its
// own stream; we still serialize at the recognizer boundary to match the
// reference implementation's single-recognizer assumption.
type WhisperModel struct {
	mu         sync.Mutex
	recognizer *sherpa.OfflineRecognizer
}

// NewWhisperModel loads a Whisper offline recognizer.
func NewWhisperModel(cfg WhisperConfig) (*WhisperModel, error) {
	recognizerConfig := &sherpa.OfflineRecognizerConfig{}
	recognizerConfig.ModelConfig.Whisper.Encoder = cfg.Encoder
	recognizerConfig.ModelConfig.Whisper.Decoder = cfg.Decoder

	language := cfg.Language
	if strings.EqualFold(language, "auto") {
		language = ""
	}
	recognizerConfig.ModelConfig.Whisper.Language = language
	recognizerConfig.ModelConfig.Whisper.Task = "transcribe"
	recognizerConfig.ModelConfig.Whisper.TailPaddings = -1
	recognizerConfig.ModelConfig.Tokens = cfg.Tokens
	recognizerConfig.ModelConfig.NumThreads = cfg.NumThreads
	recognizerConfig.ModelConfig.Provider = cfg.Provider
	recognizerConfig.DecodingMethod = "greedy_search"
	if cfg.Debug {
		recognizerConfig.ModelConfig.Debug = 1
	}

	recognizer := sherpa.NewOfflineRecognizer(recognizerConfig)
	if recognizer == nil {
		return nil, fmt.Errorf("failed to create offline recognizer")
	}
	return &WhisperModel{recognizer: recognizer}, nil
}

// Transcribe decodes samples into text. beamSize is accepted to satisfy
// Model but not used: sherpa-onnx's decoding method and beam width are
// fixed when the recognizer is constructed, so preview and final use two
// WhisperModel instances built with different settings (see NewModels).
func (m *WhisperModel) Transcribe(samples []float32, sampleRate int, beamSize int) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stream := sherpa.NewOfflineStream(m.recognizer)
	if stream == nil {
		return "", fmt.Errorf("failed to create offline stream")
	}
	defer sherpa.DeleteOfflineStream(stream)

	stream.AcceptWaveform(sampleRate, samples)
	m.recognizer.Decode(stream)

	result := stream.GetResult()
	return strings.TrimSpace(result.Text), nil
}

// Close releases the underlying recognizer.
func (m *WhisperModel) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recognizer != nil {
		sherpa.DeleteOfflineRecognizer(m.recognizer)
		m.recognizer = nil
	}
}

// Models bundles the two Whisper instances the scheduler needs: a greedy,
// small-beam preview model and a modified-beam-search final model.
type Models struct {
	Preview Model
	Final   Model
}

// NewModels constructs the preview/final model pair from one base config,
// applying beamSize and decoding-method overrides per spec.md §6.
func NewModels(base WhisperConfig, finalBeamSize int) (*Models, error) {
	preview, err := NewWhisperModel(base)
	if err != nil {
		return nil, fmt.Errorf("preview model: %w", err)
	}

	finalRecognizerConfig := &sherpa.OfflineRecognizerConfig{}
	finalRecognizerConfig.ModelConfig.Whisper.Encoder = base.Encoder
	finalRecognizerConfig.ModelConfig.Whisper.Decoder = base.Decoder
	language := base.Language
	if strings.EqualFold(language, "auto") {
		language = ""
	}
	finalRecognizerConfig.ModelConfig.Whisper.Language = language
	finalRecognizerConfig.ModelConfig.Whisper.Task = "transcribe"
	finalRecognizerConfig.ModelConfig.Whisper.TailPaddings = -1
	finalRecognizerConfig.ModelConfig.Tokens = base.Tokens
	finalRecognizerConfig.ModelConfig.NumThreads = base.NumThreads
	finalRecognizerConfig.ModelConfig.Provider = base.Provider
	if finalBeamSize > 1 {
		finalRecognizerConfig.DecodingMethod = "modified_beam_search"
		finalRecognizerConfig.MaxActivePaths = int32(finalBeamSize)
	} else {
		finalRecognizerConfig.DecodingMethod = "greedy_search"
	}
	if base.Debug {
		finalRecognizerConfig.ModelConfig.Debug = 1
	}

	finalRecognizer := sherpa.NewOfflineRecognizer(finalRecognizerConfig)
	if finalRecognizer == nil {
		preview.Close()
		return nil, fmt.Errorf("final model: failed to create offline recognizer")
	}

	return &Models{Preview: preview, Final: &WhisperModel{recognizer: finalRecognizer}}, nil
}
