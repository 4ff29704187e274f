package audio

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// readRetryDelay paces the read loop after a device error.
const readRetryDelay = 20 * time.Millisecond

// Capture pulls fixed-duration PCM frames from the microphone and forwards
// them to the session while unmuted. The mute flag is the only state shared
// with the playback pipeline; playback toggles it, capture reads it before
// emitting each frame.
type Capture struct {
	openDevice func() (CaptureDevice, error)
	chunkSize  int

	muted atomic.Bool

	mu      sync.Mutex
	running bool
	device  CaptureDevice
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewCapture creates a capture pipeline producing frames of chunkSize bytes.
// The device is opened in Start and released in Stop.
func NewCapture(openDevice func() (CaptureDevice, error), chunkSize int) *Capture {
	return &Capture{
		openDevice: openDevice,
		chunkSize:  chunkSize,
	}
}

// Start opens the microphone and begins the frame loop. An acquisition
// failure aborts the start and leaves capture stopped. Transient read errors
// during the loop are logged and skipped.
func (c *Capture) Start(onFrame func(pcm []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	device, err := c.openDevice()
	if err != nil {
		return fmt.Errorf("failed to open capture device: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.device = device
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true
	log.Printf("🎤 Audio capture started (%d bytes per frame)", c.chunkSize)

	go c.readLoop(ctx, device, onFrame)
	return nil
}

func (c *Capture) readLoop(ctx context.Context, device CaptureDevice, onFrame func([]byte)) {
	defer close(c.done)

	buf := make([]byte, c.chunkSize)
	for {
		if err := device.ReadFull(ctx, buf); err != nil {
			if ctx.Err() != nil || err == ErrBufferClosed {
				return
			}
			log.Printf("⚠️ Audio capture read error: %v", err)
			// A failing device returns instantly; pace the retries.
			select {
			case <-ctx.Done():
				return
			case <-time.After(readRetryDelay):
			}
			continue
		}

		// Muted frames are still read from the device (the buffer must keep
		// draining) but never emitted.
		if c.muted.Load() {
			continue
		}

		frame := make([]byte, c.chunkSize)
		copy(frame, buf)
		onFrame(frame)
	}
}

// Stop cancels the read loop and releases the device. Idempotent.
func (c *Capture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}
	c.running = false
	c.cancel()
	<-c.done
	if err := c.device.Close(); err != nil {
		log.Printf("⚠️ Error closing capture device: %v", err)
	}
	c.device = nil
	log.Printf("🎤 Audio capture stopped")
}

// SetMuted updates the shared mute flag. Takes effect on the next frame read.
func (c *Capture) SetMuted(muted bool) {
	c.muted.Store(muted)
}

// IsMuted reports whether frames are currently suppressed.
func (c *Capture) IsMuted() bool {
	return c.muted.Load()
}
