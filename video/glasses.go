package video

import "log"

// Streamer is the contract a smart-glasses camera adapter must provide. The
// adapter owns its own throttling and JPEG conversion, matching the phone
// pipeline's format: at most one reduced-quality frame per interval.
type Streamer interface {
	StartStreaming(onFrame func(jpeg []byte))
	StopStreaming()
}

// UnavailableGlasses stands in when no vendor SDK is present. It fails by
// producing no frames rather than crashing the session.
type UnavailableGlasses struct{}

func NewUnavailableGlasses() *UnavailableGlasses {
	return &UnavailableGlasses{}
}

func (g *UnavailableGlasses) StartStreaming(onFrame func(jpeg []byte)) {
	log.Printf("⚠️ Glasses camera SDK not available, no frames will be streamed")
}

func (g *UnavailableGlasses) StopStreaming() {}
