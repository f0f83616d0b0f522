package vad

import (
	"fmt"
	"sync"

	"github.com/voxkeyd/voxkeyd/internal/sherpa"
)

// SileroPrecise is the default Precise implementation, wrapping sherpa-onnx's
// Silero VAD model, grounded on the reference assistant's STT recognizer
// (internal/stt/recognizer.go), which drives the same
// sherpa.VoiceActivityDetector type. sherpa-onnx is not thread-safe, so
// every call is serialized.
type SileroPrecise struct {
	mu  sync.Mutex
	vad *sherpa.VoiceActivityDetector
}

// SileroConfig mirrors spec.md §6's silero_sensitivity and model path
// configuration surface.
type SileroConfig struct {
	ModelPath           string
	Threshold           float32
	MinSilenceDuration  float32
	MinSpeechDuration   float32
	WindowSize          int
	BufferSizeInSeconds float32
}

// NewSileroPrecise loads the Silero VAD model.
func NewSileroPrecise(cfg SileroConfig) (*SileroPrecise, error) {
	vadConfig := &sherpa.VadModelConfig{}
	vadConfig.SileroVad.Model = cfg.ModelPath
	vadConfig.SileroVad.Threshold = cfg.Threshold
	vadConfig.SileroVad.MinSilenceDuration = cfg.MinSilenceDuration
	vadConfig.SileroVad.MinSpeechDuration = cfg.MinSpeechDuration
	vadConfig.SileroVad.WindowSize = cfg.WindowSize
	vadConfig.SampleRate = 16000
	vadConfig.NumThreads = 1

	bufferSeconds := cfg.BufferSizeInSeconds
	if bufferSeconds <= 0 {
		bufferSeconds = 30
	}

	vad := sherpa.NewVoiceActivityDetector(vadConfig, bufferSeconds)
	if vad == nil {
		return nil, fmt.Errorf("failed to create silero vad")
	}
	return &SileroPrecise{vad: vad}, nil
}

// Classify feeds samples into the Silero model and reports a binary
// probability: 1 when the model currently considers the window speech, 0
// otherwise. sherpa-onnx's VAD does not expose a continuous probability, so
// the gate's threshold comparison degenerates to an IsSpeech() check for
// this backend; the interface still carries a float32 for classifiers that
// do expose one.
func (s *SileroPrecise) Classify(samples []float32, sampleRate int) (float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.vad.AcceptWaveform(samples)
	for !s.vad.IsEmpty() {
		s.vad.Pop()
	}
	if s.vad.IsSpeech() {
		return 1, nil
	}
	return 0, nil
}

// Close releases the underlying model.
func (s *SileroPrecise) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vad != nil {
		sherpa.DeleteVoiceActivityDetector(s.vad)
		s.vad = nil
	}
}
