// Package config provides configuration and CLI argument parsing for
// voxkeyd, following the reference assistant's flag-based ParseFlags
// pattern (no config-file layer, matching spec.md's non-goals).
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/voxkeyd/voxkeyd/internal/keystroke"
	"github.com/voxkeyd/voxkeyd/internal/sherpa"
)

// Config holds all startup configuration for voxkeyd, populated from CLI
// flags and an optional word-map/discard-phrase YAML file.
type Config struct {
	// Model paths
	ModelDir       string
	VADModel       string
	WhisperEncoder string
	WhisperDecoder string
	WhisperTokens  string

	// Audio
	SampleRate                int
	BufferSize                int // frame size, in samples, handed to the segmenter
	PreRecordingBufferSeconds float64

	// Segmenter
	PostSpeechSilenceDuration float64 // seconds
	MinLengthOfRecording      float64 // seconds

	// Transcription scheduler
	RealtimeProcessingPauseMs int
	PreviewBeamSize           int
	FinalBeamSize             int

	// VAD
	SileroSensitivity float64
	WebrtcSensitivity float64 // coarse-stage RMS threshold, named per spec.md's terminology

	// Language / provider
	STTLanguage string
	Provider    string

	// Thread counts (0 = auto-detect)
	NumThreads int
	VADThreads int
	STTThreads int

	// Hotkey / mode controller
	HotkeyChord             string
	DoubleTapWindowMs       int
	ListeningStateDelayMs   int
	ListeningStartSoundPath string
	ListeningStopSoundPath  string

	// Agent mode
	AgentBufferTimeoutMs  int
	AgentCommandTemplate  string

	// Keystroke engine
	TypingDelayMs       int
	KeyHoldMs           int
	TypeRealtimePreview bool

	// Word substitution / discard phrases, loaded from WordMapFile if set
	WordMapFile    string
	WordMappings   []keystroke.WordPair
	DiscardPhrases []string

	Verbose bool
}

// DefaultConfig returns a configuration with sensible defaults mirroring
// spec.md §6's listed defaults.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultModelDir := filepath.Join(homeDir, ".voxkeyd", "models")

	return &Config{
		ModelDir:   defaultModelDir,
		SampleRate: 16000,
		BufferSize: 512,

		PreRecordingBufferSeconds: 1.0,
		PostSpeechSilenceDuration: 0.8,
		MinLengthOfRecording:      0.3,

		RealtimeProcessingPauseMs: 20,
		PreviewBeamSize:           1,
		FinalBeamSize:             4,

		SileroSensitivity: 0.5,
		WebrtcSensitivity: 0.02,

		STTLanguage: "en",
		Provider:    "",

		NumThreads: 0,
		VADThreads: 0,
		STTThreads: 0,

		HotkeyChord:           "ctrl+alt+space",
		DoubleTapWindowMs:     500,
		ListeningStateDelayMs: 300,

		AgentBufferTimeoutMs: 2000,
		AgentCommandTemplate: `subd -t ada "$PROMPT"`,

		TypingDelayMs:       8,
		KeyHoldMs:           5,
		TypeRealtimePreview: true,

		DiscardPhrases: []string{"thank you", "thanks", "you"},

		Verbose: false,
	}
}

// ParseFlags parses command-line flags and returns a Config. Every Config
// knob has a flag (model and word-map paths, audio, segmenter, scheduler,
// VAD, hotkey, agent, keystroke timings, verbose logging); there is no
// config file beyond the optional word-map YAML.
func ParseFlags() (*Config, error) {
	cfg := DefaultConfig()

	flag.StringVar(&cfg.ModelDir, "model-dir", cfg.ModelDir, "Directory containing model files (Whisper, Silero VAD)")
	flag.StringVar(&cfg.WordMapFile, "word-map", cfg.WordMapFile, "Path to a YAML file of word substitutions and discard phrases")

	flag.IntVar(&cfg.SampleRate, "sample-rate", cfg.SampleRate, "Audio sample rate")
	flag.IntVar(&cfg.BufferSize, "buffer-size", cfg.BufferSize, "Frame size in samples handed to the segmenter")
	flag.Float64Var(&cfg.PreRecordingBufferSeconds, "pre-recording-buffer-duration", cfg.PreRecordingBufferSeconds, "Seconds of pre-speech audio retained in the pre-roll")

	flag.Float64Var(&cfg.PostSpeechSilenceDuration, "post-speech-silence-duration", cfg.PostSpeechSilenceDuration, "Seconds of trailing silence before an utterance closes")
	flag.Float64Var(&cfg.MinLengthOfRecording, "min-length-of-recording", cfg.MinLengthOfRecording, "Minimum utterance duration in seconds; shorter utterances are discarded")

	flag.IntVar(&cfg.RealtimeProcessingPauseMs, "realtime-processing-pause-ms", cfg.RealtimeProcessingPauseMs, "Throttle between preview transcription requests, in milliseconds")
	flag.IntVar(&cfg.PreviewBeamSize, "preview-beam-size", cfg.PreviewBeamSize, "Beam size for the preview model (1 = greedy)")
	flag.IntVar(&cfg.FinalBeamSize, "final-beam-size", cfg.FinalBeamSize, "Beam size for the final model")

	flag.Float64Var(&cfg.SileroSensitivity, "silero-sensitivity", cfg.SileroSensitivity, "Precise-stage Silero VAD probability threshold (0.0-1.0)")
	flag.Float64Var(&cfg.WebrtcSensitivity, "webrtc-sensitivity", cfg.WebrtcSensitivity, "Coarse-stage RMS amplitude threshold (0.0-1.0)")

	flag.StringVar(&cfg.STTLanguage, "stt-language", cfg.STTLanguage, "STT language code ('en', 'es', 'auto', ...)")
	flag.StringVar(&cfg.Provider, "provider", cfg.Provider, "Hardware acceleration provider (cpu, cuda, coreml); auto-detected if empty")

	flag.IntVar(&cfg.NumThreads, "num-threads", cfg.NumThreads, "Default thread count for all models (0 = auto-detect)")
	flag.IntVar(&cfg.VADThreads, "vad-threads", cfg.VADThreads, "VAD thread count override")
	flag.IntVar(&cfg.STTThreads, "stt-threads", cfg.STTThreads, "STT thread count override")

	flag.StringVar(&cfg.HotkeyChord, "hotkey", cfg.HotkeyChord, "Global hotkey chord, e.g. 'ctrl+alt+space'")
	flag.IntVar(&cfg.DoubleTapWindowMs, "double-tap-window-ms", cfg.DoubleTapWindowMs, "Max gap between taps counted as a double-tap, in milliseconds")
	flag.IntVar(&cfg.ListeningStateDelayMs, "listening-state-delay-ms", cfg.ListeningStateDelayMs, "Delay after the arm sound before the mic resumes, in milliseconds")
	flag.StringVar(&cfg.ListeningStartSoundPath, "listening-start-sound", cfg.ListeningStartSoundPath, "Path to the arm feedback sound")
	flag.StringVar(&cfg.ListeningStopSoundPath, "listening-stop-sound", cfg.ListeningStopSoundPath, "Path to the disarm feedback sound")

	flag.IntVar(&cfg.AgentBufferTimeoutMs, "agent-buffer-timeout-ms", cfg.AgentBufferTimeoutMs, "Silence debounce before the agent buffer flushes, in milliseconds")
	flag.StringVar(&cfg.AgentCommandTemplate, "agent-command", cfg.AgentCommandTemplate, `Command template for agent mode; must contain the literal placeholder $PROMPT`)

	flag.IntVar(&cfg.TypingDelayMs, "typing-delay-ms", cfg.TypingDelayMs, "Delay between keystrokes, in milliseconds")
	flag.IntVar(&cfg.KeyHoldMs, "key-hold-ms", cfg.KeyHoldMs, "Hold duration for each key press, in milliseconds")
	flag.BoolVar(&cfg.TypeRealtimePreview, "type-realtime-preview", cfg.TypeRealtimePreview, "Type tentative preview text as it is recognized")

	flag.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Enable verbose logging")

	flag.Parse()

	if cfg.WordMapFile != "" {
		mappings, discard, err := loadWordMapFile(cfg.WordMapFile)
		if err != nil {
			return nil, fmt.Errorf("load word map: %w", err)
		}
		cfg.WordMappings = mappings
		if len(discard) > 0 {
			cfg.DiscardPhrases = discard
		}
	}

	if cfg.Provider == "" {
		cfg.Provider = detectProvider()
	}
	cfg.normalizeThreadCounts()

	cfg.VADModel = filepath.Join(cfg.ModelDir, "silero_vad.onnx")
	cfg.WhisperEncoder = filepath.Join(cfg.ModelDir, "whisper", "whisper-small-encoder.int8.onnx")
	cfg.WhisperDecoder = filepath.Join(cfg.ModelDir, "whisper", "whisper-small-decoder.int8.onnx")
	cfg.WhisperTokens = filepath.Join(cfg.ModelDir, "whisper", "whisper-small-tokens.txt")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) normalizeThreadCounts() {
	cpuCores := runtime.NumCPU()
	if c.NumThreads == 0 {
		c.NumThreads = max(1, cpuCores/3)
	}
	if c.VADThreads == 0 {
		c.VADThreads = 1
	}
	if c.STTThreads == 0 {
		c.STTThreads = c.NumThreads
	}
}

func (c *Config) validate() error {
	requiredFiles := []string{c.VADModel, c.WhisperEncoder, c.WhisperDecoder, c.WhisperTokens}
	for _, path := range requiredFiles {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return fmt.Errorf("required model file not found: %s", path)
		}
	}
	return nil
}

// detectProvider auto-detects the best hardware acceleration provider for
// the current platform, grounded on the reference assistant's
// runtime.GOOS switch.
func detectProvider() string {
	switch runtime.GOOS {
	case "darwin":
		return "coreml"
	case "linux":
		if sherpa.HasNvidiaGPU() {
			return "cuda"
		}
		return "cpu"
	default:
		return "cpu"
	}
}
