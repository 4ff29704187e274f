package video

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Capture throttles a camera source to at most one compressed frame per
// interval. Backpressure keeps only the latest pending frame; older frames
// are dropped, never the newest.
type Capture struct {
	interval time.Duration
	quality  int
	maxDim   int

	mu      sync.Mutex
	running bool
	source  Source
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewCapture creates a video pipeline emitting JPEG payloads at the given
// quality, at most once per interval.
func NewCapture(interval time.Duration, quality, maxDim int) *Capture {
	return &Capture{
		interval: interval,
		quality:  quality,
		maxDim:   maxDim,
	}
}

// Start begins pulling frames from source. A source that fails to start
// aborts the pipeline; a source that simply produces no frames is harmless.
func (c *Capture) Start(source Source, onFrame func(jpeg []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	frames, err := source.Start(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to start video source %s: %w", source.Name(), err)
	}

	c.source = source
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true
	log.Printf("📷 Video capture started (%s, 1 frame / %v)", source.Name(), c.interval)

	go c.throttleLoop(ctx, frames, onFrame)
	return nil
}

func (c *Capture) throttleLoop(ctx context.Context, frames <-chan Frame, onFrame func([]byte)) {
	defer close(c.done)

	var lastEmit time.Time
	for {
		var frame Frame
		var ok bool
		select {
		case <-ctx.Done():
			return
		case frame, ok = <-frames:
			if !ok {
				return
			}
		}

		// Keep only latest: a backlog means we are behind, so everything but
		// the newest pending frame is discarded.
	drain:
		for {
			select {
			case newer, open := <-frames:
				if !open {
					break drain
				}
				frame = newer
			default:
				break drain
			}
		}

		now := time.Now()
		if !lastEmit.IsZero() && now.Sub(lastEmit) < c.interval {
			continue
		}

		data, err := EncodeJPEG(frame.Image, c.quality, c.maxDim)
		if err != nil {
			log.Printf("⚠️ Failed to encode video frame: %v", err)
			continue
		}
		onFrame(data)
		lastEmit = now
	}
}

// Stop cancels the loop and releases the source. Idempotent.
func (c *Capture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}
	c.running = false
	c.cancel()
	<-c.done
	if err := c.source.Close(); err != nil {
		log.Printf("⚠️ Error closing video source: %v", err)
	}
	c.source = nil
	log.Printf("📷 Video capture stopped")
}
