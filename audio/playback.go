package audio

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
)

// Playback drains inbound PCM chunks in arrival order and writes them to the
// output device, emitting playing-state transitions for the mute policy.
//
// The start edge is the first chunk of a contiguous run; the stop edge is the
// turn-complete signal, never chunk starvation. Inter-phrase gaps in
// synthesized speech would otherwise flicker the mic unmuted mid-turn.
type Playback struct {
	openDevice func() (PlaybackDevice, error)

	onStateChanged func(playing bool)
	playing        atomic.Bool

	mu      sync.Mutex
	running bool
	device  PlaybackDevice
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPlayback creates a playback pipeline. The device is opened in Start and
// released in Stop.
func NewPlayback(openDevice func() (PlaybackDevice, error)) *Playback {
	return &Playback{openDevice: openDevice}
}

// SetOnPlaybackStateChanged registers the playing-state callback. Its only
// consumer is the capture mute policy; it must not block. Set before Start.
func (p *Playback) SetOnPlaybackStateChanged(fn func(playing bool)) {
	p.onStateChanged = fn
}

// Start opens the output device and begins draining audioIn. turnComplete
// marks the authoritative end of the model's speech for the stop edge.
func (p *Playback) Start(audioIn <-chan []byte, turnComplete <-chan struct{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}

	device, err := p.openDevice()
	if err != nil {
		return fmt.Errorf("failed to open playback device: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.device = device
	p.cancel = cancel
	p.running = true
	log.Printf("🔊 Audio playback started")

	p.wg.Add(2)
	go p.drainLoop(ctx, device, audioIn)
	go p.turnCompleteLoop(ctx, turnComplete)
	return nil
}

func (p *Playback) drainLoop(ctx context.Context, device PlaybackDevice, audioIn <-chan []byte) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-audioIn:
			if !ok {
				return
			}
			// Notify exactly once on the not-playing -> playing transition,
			// before the chunk reaches the device.
			if p.playing.CompareAndSwap(false, true) {
				p.notify(true)
			}
			if err := device.Write(chunk); err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("⚠️ Audio playback write error: %v", err)
			}
		}
	}
}

func (p *Playback) turnCompleteLoop(ctx context.Context, turnComplete <-chan struct{}) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-turnComplete:
			if !ok {
				return
			}
			if p.playing.CompareAndSwap(true, false) {
				p.notify(false)
			}
		}
	}
}

// Stop cancels the loops, releases the device, and force-emits a not-playing
// transition regardless of prior state (fail-safe unmute). Idempotent.
func (p *Playback) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.running = false
	p.cancel()
	if err := p.device.Close(); err != nil {
		log.Printf("⚠️ Error closing playback device: %v", err)
	}
	p.wg.Wait()
	p.device = nil

	p.playing.Store(false)
	p.notify(false)
	log.Printf("🔊 Audio playback stopped")
}

// IsPlaying reports whether model speech is currently being played.
func (p *Playback) IsPlaying() bool {
	return p.playing.Load()
}

func (p *Playback) notify(playing bool) {
	if p.onStateChanged != nil {
		p.onStateChanged(playing)
	}
}
