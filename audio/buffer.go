package audio

import (
	"context"
	"errors"
	"sync"
)

// ErrBufferClosed is returned when reading from a closed buffer.
var ErrBufferClosed = errors.New("audio buffer closed")

// Buffer accumulates PCM bytes from a device callback and hands them out in
// caller-sized reads. Writes never block: when the buffer is full the oldest
// bytes are dropped so a stalled reader cannot back up the device callback.
type Buffer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	data   []byte
	maxLen int
	closed bool
}

// NewBuffer creates a buffer that retains at most maxLen bytes.
func NewBuffer(maxLen int) *Buffer {
	b := &Buffer{
		data:   make([]byte, 0, maxLen),
		maxLen: maxLen,
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Append adds PCM bytes, dropping the oldest bytes on overflow.
func (b *Buffer) Append(chunk []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.data = append(b.data, chunk...)
	if overflow := len(b.data) - b.maxLen; overflow > 0 {
		b.data = b.data[overflow:]
	}
	b.cond.Broadcast()
}

// ReadFull blocks until len(p) bytes are available (or the buffer is closed
// or ctx is cancelled) and copies them into p.
func (b *Buffer) ReadFull(ctx context.Context, p []byte) error {
	// Wake the waiter when the caller gives up.
	stop := context.AfterFunc(ctx, func() {
		b.mu.Lock()
		b.cond.Broadcast()
		b.mu.Unlock()
	})
	defer stop()

	b.mu.Lock()
	defer b.mu.Unlock()

	for len(b.data) < len(p) {
		if b.closed {
			return ErrBufferClosed
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		b.cond.Wait()
	}

	copy(p, b.data[:len(p)])
	b.data = b.data[len(p):]
	return nil
}

// Len returns the currently buffered byte count.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Close wakes all blocked readers; subsequent reads fail.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.cond.Broadcast()
}
