package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/gen2brain/malgo"
)

// CaptureDevice is a microphone handle owned by a Capture pipeline for the
// duration of one session.
type CaptureDevice interface {
	// ReadFull blocks until exactly len(p) bytes of PCM are available.
	ReadFull(ctx context.Context, p []byte) error
	Close() error
}

// PlaybackDevice is a speaker handle owned by a Playback pipeline. Write
// blocks until the device buffer accepts the chunk, which provides the
// pipeline's natural backpressure.
type PlaybackDevice interface {
	Write(pcm []byte) error
	Close() error
}

// MicDevice captures 16-bit mono PCM from the default microphone via malgo.
// The device callback feeds a bounded buffer that ReadFull drains in
// fixed-size frames.
type MicDevice struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	buf    *Buffer
}

// NewMicDevice opens and starts the default capture device at the given
// sample rate. An acquisition failure (device busy, no microphone) is
// returned immediately and leaves nothing to release.
func NewMicDevice(sampleRate int) (*MicDevice, error) {
	ctxConfig := malgo.ContextConfig{}
	ctxConfig.ThreadPriority = malgo.ThreadPriorityRealtime

	malgoCtx, err := malgo.InitContext(nil, ctxConfig, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to init audio context: %w", err)
	}

	m := &MicDevice{
		ctx: malgoCtx,
		// Retain at most one second of audio; older samples are stale anyway.
		buf: NewBuffer(sampleRate * 2),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pInputSamples []byte, _ uint32) {
			m.buf.Append(pInputSamples)
		},
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = malgoCtx.Uninit()
		return nil, fmt.Errorf("failed to init microphone: %w", err)
	}
	m.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = malgoCtx.Uninit()
		return nil, fmt.Errorf("failed to start microphone: %w", err)
	}

	return m, nil
}

func (m *MicDevice) ReadFull(ctx context.Context, p []byte) error {
	return m.buf.ReadFull(ctx, p)
}

func (m *MicDevice) Close() error {
	m.buf.Close()
	if m.device != nil {
		_ = m.device.Stop()
		m.device.Uninit()
		m.device = nil
	}
	if m.ctx != nil {
		err := m.ctx.Uninit()
		m.ctx = nil
		return err
	}
	return nil
}

// SpeakerDevice plays 16-bit mono PCM through the default output via oto.
type SpeakerDevice struct {
	otoCtx  *oto.Context
	player  *oto.Player
	mu      sync.Mutex
	cond    *sync.Cond
	buf     []byte
	maxLen  int
	closed  bool
	started bool
}

// oto allows exactly one context per process and offers no way to destroy
// it, so the context is created once and shared by every SpeakerDevice.
// Sessions come and go; only the Player is per-device. The first caller's
// sample rate wins (the engine always plays at the one output rate).
var (
	otoContextFn = oto.NewContext
	otoOnce      sync.Once
	otoShared    *oto.Context
	otoInitErr   error
)

func speakerContext(sampleRate int) (*oto.Context, error) {
	otoOnce.Do(func() {
		opts := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 1,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   time.Second,
		}
		ctx, ready, err := otoContextFn(opts)
		if err != nil {
			otoInitErr = fmt.Errorf("failed to init speaker: %w", err)
			return
		}
		<-ready
		otoShared = ctx
	})
	return otoShared, otoInitErr
}

// NewSpeakerDevice opens the default playback device in streaming mode with
// roughly one second of device-side buffering. Safe to call once per session;
// the underlying audio context persists across devices.
func NewSpeakerDevice(sampleRate int) (*SpeakerDevice, error) {
	otoCtx, err := speakerContext(sampleRate)
	if err != nil {
		return nil, err
	}

	s := &SpeakerDevice{
		otoCtx: otoCtx,
		buf:    make([]byte, 0, sampleRate*2),
		maxLen: sampleRate * 2, // ~1 second of pending audio
	}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

// Write blocks while more than ~1 second of audio is pending, then queues the
// chunk. The player is created lazily on the first write.
func (s *SpeakerDevice) Write(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.buf) >= s.maxLen && !s.closed {
		s.cond.Wait()
	}
	if s.closed {
		return ErrBufferClosed
	}

	s.buf = append(s.buf, pcm...)
	if !s.started {
		s.started = true
		s.player = s.otoCtx.NewPlayer(s)
		s.player.Play()
	}
	s.cond.Broadcast()
	return nil
}

// Read implements io.Reader for the oto player, which pulls audio on its own
// thread. Returns silence once the device is closed so oto drains gracefully.
func (s *SpeakerDevice) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.buf) == 0 && !s.closed {
		s.cond.Wait()
	}

	if s.closed && len(s.buf) == 0 {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	s.cond.Broadcast()
	return n, nil
}

func (s *SpeakerDevice) Close() error {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	player := s.player
	s.player = nil
	s.mu.Unlock()

	if player != nil {
		return player.Close()
	}
	return nil
}
