// Package audio provides microphone capture, a pre-speech ring buffer, and
// feedback-sound playback using malgo.
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/voxkeyd/voxkeyd/internal/logging"
)

// Ring buffer configuration for the raw malgo callback hand-off.
const (
	// ringBufferSize is the number of raw sample chunks the SPSC ring can hold
	// before the capture callback starts dropping audio.
	ringBufferSize = 128

	// maxSamplesPerChunk bounds a single malgo callback's sample count.
	maxSamplesPerChunk = 2048
)

// Frame is a fixed-length block of mono PCM samples, produced once per
// F/sample_rate seconds by the capture loop.
type Frame struct {
	Samples    []float32
	SampleRate int
	CapturedAt time.Time
}

// Gate reports whether the capture loop should currently drop audio.
// Implemented by internal/gate.Gate; declared here to avoid an import
// cycle since this package has no other need to know about gate.
type Gate interface {
	IsPaused() bool
}

type audioChunk struct {
	samples []float32
	len     int
}

// ringBuffer is a lock-free single-producer single-consumer ring buffer for
// raw malgo callback chunks, decoupling the audio-thread callback (which
// must never block) from frame assembly.
type ringBuffer struct {
	chunks    [ringBufferSize]audioChunk
	head      atomic.Uint64
	tail      atomic.Uint64
	dropCount atomic.Uint64
}

func newRingBuffer() *ringBuffer {
	rb := &ringBuffer{}
	for i := range rb.chunks {
		rb.chunks[i].samples = make([]float32, maxSamplesPerChunk)
	}
	return rb
}

func (rb *ringBuffer) push(samples []float32) bool {
	head := rb.head.Load()
	tail := rb.tail.Load()
	if head-tail >= ringBufferSize {
		rb.dropCount.Add(1)
		return false
	}
	slot := &rb.chunks[head%ringBufferSize]
	n := copy(slot.samples, samples)
	slot.len = n
	rb.head.Add(1)
	return true
}

func (rb *ringBuffer) pop() []float32 {
	head := rb.head.Load()
	tail := rb.tail.Load()
	if head == tail {
		return nil
	}
	slot := &rb.chunks[tail%ringBufferSize]
	samples := slot.samples[:slot.len]
	rb.tail.Add(1)
	return samples
}

// PreRoll is a fixed-capacity ring of the most recent Frames that passed the
// gate. The capture loop pushes every such frame, so a snapshot taken while a
// frame is being handled ends with that frame. Snapshotting is a shallow copy
// of frame slice headers, not a deep audio copy.
type PreRoll struct {
	mu     sync.Mutex
	frames []Frame
	cap    int
	next   int
	filled int
}

// NewPreRoll creates a ring sized to hold capacity frames.
func NewPreRoll(capacity int) *PreRoll {
	if capacity < 1 {
		capacity = 1
	}
	return &PreRoll{frames: make([]Frame, capacity), cap: capacity}
}

// Push appends a frame, evicting the oldest once full.
func (p *PreRoll) Push(f Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames[p.next] = f
	p.next = (p.next + 1) % p.cap
	if p.filled < p.cap {
		p.filled++
	}
}

// Clear discards all buffered pre-speech frames, used on disarm so a
// stale pre-roll cannot leak into the next armed utterance.
func (p *PreRoll) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next = 0
	p.filled = 0
}

// Snapshot returns the buffered frames in chronological order.
func (p *PreRoll) Snapshot() []Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Frame, p.filled)
	start := (p.next - p.filled + p.cap) % p.cap
	for i := 0; i < p.filled; i++ {
		out[i] = p.frames[(start+i)%p.cap]
	}
	return out
}

// PreRollFrameCount computes the ring capacity N such that
// N * frameSize / sampleRate >= duration.
func PreRollFrameCount(duration time.Duration, sampleRate, frameSize int) int {
	if frameSize <= 0 || sampleRate <= 0 {
		return 1
	}
	frameDur := float64(frameSize) / float64(sampleRate)
	n := int(math.Ceil(duration.Seconds() / frameDur))
	if n < 1 {
		n = 1
	}
	return n
}

// Capturer owns the input stream, assembles fixed-size Frames, maintains a
// PreRoll, and hands frames to a sink in arrival order. It never performs
// STT or keystroke work itself.
type Capturer struct {
	ctx              *malgo.AllocatedContext
	device           *malgo.Device
	sampleRate       uint32
	deviceSampleRate uint32
	frameSize        int
	ringBuf          *ringBuffer
	stopChan         chan struct{}
	wg               sync.WaitGroup
	resampler        *PolyphaseResampler
	running          atomic.Bool
	gate             Gate
	preRoll          *PreRoll
	onFrame          func(Frame)
	leftover         []float32
	log              logging.Logger
}

// NewCapturer creates a capturer for the given sample rate and frame size
// (in samples). gate is consulted on every frame per spec.md §4.2 step 1.
func NewCapturer(sampleRate, frameSize int, preRollDuration time.Duration, g Gate, log logging.Logger) (*Capturer, error) {
	if log == nil {
		log = logging.NoOp{}
	}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	n := PreRollFrameCount(preRollDuration, sampleRate, frameSize)
	return &Capturer{
		ctx:        ctx,
		sampleRate: uint32(sampleRate),
		frameSize:  frameSize,
		ringBuf:    newRingBuffer(),
		stopChan:   make(chan struct{}),
		gate:       g,
		preRoll:    NewPreRoll(n),
		log:        log,
	}, nil
}

// PreRoll exposes the capturer's pre-speech ring so the segmenter can
// snapshot it on utterance open.
func (c *Capturer) PreRoll() *PreRoll { return c.preRoll }

// Start begins capture from the default microphone and delivers assembled
// Frames to onFrame in arrival order, exactly once each.
func (c *Capturer) Start(onFrame func(Frame)) error {
	c.onFrame = onFrame

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = c.sampleRate
	deviceConfig.PeriodSizeInMilliseconds = 32

	tempDevice, err := malgo.InitDevice(c.ctx.Context, deviceConfig, malgo.DeviceCallbacks{})
	if err != nil {
		return fmt.Errorf("query capture device: %w", err)
	}
	c.deviceSampleRate = tempDevice.SampleRate()
	tempDevice.Uninit()

	if c.deviceSampleRate != c.sampleRate && c.deviceSampleRate > c.sampleRate {
		c.resampler = NewPolyphaseResampler(int(c.deviceSampleRate), int(c.sampleRate))
	}

	onRecvFrames := func(pOutputSample, pInputSamples []byte, framecount uint32) {
		if !c.running.Load() {
			return
		}
		samples := bytesToFloat32(pInputSamples)
		if len(samples) > 0 {
			c.ringBuf.push(samples)
		}
	}

	device, err := malgo.InitDevice(c.ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		return fmt.Errorf("init capture device: %w", err)
	}
	c.device = device
	c.running.Store(true)

	c.wg.Add(1)
	go c.processLoop()

	if err := device.Start(); err != nil {
		return fmt.Errorf("start capture device: %w", err)
	}
	return nil
}

// processLoop drains the ring buffer, assembles fixed-size Frames, gates
// them through the preload/resume gate, and hands each exactly once to
// onFrame. Never performs STT or keystroke work.
func (c *Capturer) processLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stopChan:
			return
		default:
		}

		raw := c.ringBuf.pop()
		if raw == nil {
			select {
			case <-c.stopChan:
				return
			case <-time.After(100 * time.Microsecond):
			}
			continue
		}

		samples := make([]float32, len(raw))
		copy(samples, raw)

		if c.resampler != nil {
			samples = c.resampler.Resample(samples)
		} else if c.deviceSampleRate != 0 && c.deviceSampleRate != c.sampleRate {
			samples = ResampleInPlace(samples, int(c.deviceSampleRate), int(c.sampleRate))
		}

		c.leftover = append(c.leftover, samples...)
		for len(c.leftover) >= c.frameSize {
			chunk := make([]float32, c.frameSize)
			copy(chunk, c.leftover[:c.frameSize])
			c.leftover = c.leftover[c.frameSize:]
			c.emitFrame(chunk)
		}
	}
}

func (c *Capturer) emitFrame(samples []float32) {
	if c.gate != nil && c.gate.IsPaused() {
		// Dropped: neither appended to PreRoll nor handed to the sink.
		return
	}
	f := Frame{Samples: samples, SampleRate: int(c.sampleRate), CapturedAt: time.Now()}
	c.preRoll.Push(f)
	if c.onFrame != nil {
		c.onFrame(f)
	}
}

// Stop halts audio capture and waits for the assembly goroutine to exit.
func (c *Capturer) Stop() {
	c.running.Store(false)
	select {
	case <-c.stopChan:
	default:
		close(c.stopChan)
	}
	c.wg.Wait()
	if c.device != nil {
		c.device.Stop()
		c.device.Uninit()
		c.device = nil
	}
}

// Close releases all audio resources.
func (c *Capturer) Close() {
	c.Stop()
	if c.ctx != nil {
		_ = c.ctx.Uninit()
		c.ctx.Free()
		c.ctx = nil
	}
}

func bytesToFloat32(data []byte) []float32 {
	numSamples := len(data) / 4
	samples := make([]float32, numSamples)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	return samples
}
