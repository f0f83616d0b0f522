package audio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/voxkeyd/voxkeyd/internal/logging"
)

// Sound plays short feedback clips (arm/disarm beeps) asynchronously.
// Failure is silent, matching spec.md §6's Sound interface contract.
type Sound interface {
	Play(path string)
}

// Player is the default Sound implementation, backed by a malgo playback
// device, adapted from the reference assistant's TTS audio player down to
// the one-shot clip case this daemon actually needs.
type Player struct {
	ctx        *malgo.AllocatedContext
	sampleRate uint32
	log        logging.Logger
	mu         sync.Mutex
}

// NewPlayer creates a feedback-sound player using the default output device.
func NewPlayer(log logging.Logger) (*Player, error) {
	if log == nil {
		log = logging.NoOp{}
	}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init playback context: %w", err)
	}
	return &Player{ctx: ctx, log: log}, nil
}

// Play decodes a 16-bit PCM WAV file (stereo is down-mixed to mono) and plays it to completion on a
// dedicated goroutine. Decode or device errors are logged, never returned,
// matching the external Sound interface's "failure is silent" contract.
func (p *Player) Play(path string) {
	go func() {
		samples, sampleRate, err := decodeWav(path)
		if err != nil {
			p.log.Warn("sound decode failed", "path", path, "error", err)
			return
		}
		if err := p.playSamples(samples, sampleRate); err != nil {
			p.log.Warn("sound playback failed", "path", path, "error", err)
		}
	}()
}

func (p *Player) playSamples(samples []float32, sampleRate uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = sampleRate

	pos := 0
	done := make(chan struct{})
	onSendFrames := func(pOutputSample, pInputSamples []byte, framecount uint32) {
		for i := 0; i < int(framecount); i++ {
			var s float32
			if pos < len(samples) {
				s = samples[pos]
				pos++
			}
			binary.LittleEndian.PutUint32(pOutputSample[i*4:], math.Float32bits(s))
		}
		if pos >= len(samples) {
			select {
			case done <- struct{}{}:
			default:
			}
		}
	}

	device, err := malgo.InitDevice(p.ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSendFrames})
	if err != nil {
		return fmt.Errorf("init playback device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("start playback device: %w", err)
	}
	<-done
	device.Stop()
	return nil
}

// Close releases the player's audio context.
func (p *Player) Close() {
	if p.ctx != nil {
		_ = p.ctx.Uninit()
		p.ctx.Free()
		p.ctx = nil
	}
}

// decodeWav reads a canonical 16-bit PCM mono/stereo WAV file into float32
// samples, down-mixing stereo to mono. There is no WAV-decoding library in
// the reference corpus (only a WAV-encoding helper), so this is a small
// stdlib encoding/binary reader mirroring that encoder in reverse.
func decodeWav(path string) ([]float32, uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var riffHeader [12]byte
	if _, err := io.ReadFull(r, riffHeader[:]); err != nil {
		return nil, 0, err
	}
	if string(riffHeader[0:4]) != "RIFF" || string(riffHeader[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("not a RIFF/WAVE file")
	}

	var (
		sampleRate    uint32
		channels      uint16
		bitsPerSample uint16
		havefmt       bool
	)

	for {
		var chunkHeader [8]byte
		if _, err := io.ReadFull(r, chunkHeader[:]); err != nil {
			return nil, 0, fmt.Errorf("truncated wav: %w", err)
		}
		chunkID := string(chunkHeader[0:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])

		switch chunkID {
		case "fmt ":
			body := make([]byte, chunkSize)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, 0, err
			}
			channels = binary.LittleEndian.Uint16(body[2:4])
			sampleRate = binary.LittleEndian.Uint32(body[4:8])
			bitsPerSample = binary.LittleEndian.Uint16(body[14:16])
			havefmt = true
		case "data":
			if !havefmt {
				return nil, 0, fmt.Errorf("data chunk before fmt chunk")
			}
			raw := make([]byte, chunkSize)
			if _, err := io.ReadFull(r, raw); err != nil {
				return nil, 0, err
			}
			samples, err := pcm16ToMonoFloat32(raw, int(channels), int(bitsPerSample))
			if err != nil {
				return nil, 0, err
			}
			return samples, sampleRate, nil
		default:
			if _, err := io.ReadFull(r, make([]byte, chunkSize)); err != nil {
				return nil, 0, err
			}
		}
	}
}

func pcm16ToMonoFloat32(raw []byte, channels, bitsPerSample int) ([]float32, error) {
	if bitsPerSample != 16 {
		return nil, fmt.Errorf("unsupported bits per sample: %d", bitsPerSample)
	}
	if channels < 1 {
		channels = 1
	}
	frameBytes := 2 * channels
	n := len(raw) / frameBytes
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		var sum int32
		for ch := 0; ch < channels; ch++ {
			off := i*frameBytes + ch*2
			s := int16(binary.LittleEndian.Uint16(raw[off : off+2]))
			sum += int32(s)
		}
		out[i] = float32(sum) / float32(channels) / 32768.0
	}
	return out, nil
}
