package video

import (
	"context"
	"image"
	"time"
)

// Frame is one raw candidate frame from a camera source.
type Frame struct {
	Image     image.Image
	Timestamp time.Time
}

// Source produces raw frames from a camera. Sources may emit faster than the
// pipeline consumes; Capture keeps only the latest pending frame.
type Source interface {
	Name() string
	Start(ctx context.Context) (<-chan Frame, error)
	Close() error
}
