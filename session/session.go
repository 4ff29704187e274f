package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/visionclaw/visionclaw/gemini"
	"github.com/visionclaw/visionclaw/history"
	"github.com/visionclaw/visionclaw/video"
)

// State is the aggregate session state exposed to the UI layer. It is a pure
// projection of the connection state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateActive
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateActive:
		return "ACTIVE"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Mode selects the video source for a session.
type Mode string

const (
	ModePhone   Mode = "PHONE"
	ModeGlasses Mode = "GLASSES"
)

// LiveClient is the protocol client surface the orchestrator drives. No other
// component calls Connect/Disconnect.
type LiveClient interface {
	Connect(ctx context.Context) error
	Disconnect()
	SendAudio(pcm []byte)
	SendVideoFrame(jpeg []byte)
	AudioOutput() <-chan []byte
	ToolCalls() <-chan gemini.FunctionCall
	TurnComplete() <-chan struct{}
	Text() <-chan string
	StateChanges() <-chan gemini.ConnectionState
}

// AudioCapture is the microphone pipeline surface.
type AudioCapture interface {
	Start(onFrame func(pcm []byte)) error
	Stop()
	SetMuted(muted bool)
}

// AudioPlayback is the speaker pipeline surface. Only playback toggles mute,
// through its state-change callback.
type AudioPlayback interface {
	SetOnPlaybackStateChanged(fn func(playing bool))
	Start(audioIn <-chan []byte, turnComplete <-chan struct{}) error
	Stop()
}

// VideoCapture is the phone camera pipeline surface.
type VideoCapture interface {
	Start(source video.Source, onFrame func(jpeg []byte)) error
	Stop()
}

// ToolRouter resolves one tool call into exactly one tool response.
type ToolRouter interface {
	HandleToolCall(ctx context.Context, call gemini.FunctionCall)
}

// Orchestrator wires the pipelines together for one session at a time.
type Orchestrator struct {
	client   LiveClient
	capture  AudioCapture
	playback AudioPlayback
	camera   VideoCapture
	glasses  video.Streamer
	router   ToolRouter
	history  *history.Store

	mu        sync.RWMutex
	state     State
	mode      Mode
	sessionID string
	cancel    context.CancelFunc
}

// NewOrchestrator creates an idle orchestrator over the given pipelines.
func NewOrchestrator(
	client LiveClient,
	capture AudioCapture,
	playback AudioPlayback,
	camera VideoCapture,
	glasses video.Streamer,
	router ToolRouter,
	store *history.Store,
) *Orchestrator {
	return &Orchestrator{
		client:   client,
		capture:  capture,
		playback: playback,
		camera:   camera,
		glasses:  glasses,
		router:   router,
		history:  store,
		state:    StateIdle,
	}
}

// State returns the current session state.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Mode returns the capture mode of the current (or last) session.
func (o *Orchestrator) Mode() Mode {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.mode
}

// SessionID returns the current (or last) session identifier. Kept after stop
// so the transcript can still be exported.
func (o *Orchestrator) SessionID() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.sessionID
}

// StartSession opens the connection and starts every pipeline. No-op when a
// session is already ACTIVE or CONNECTING. Any failure during the sequence
// unwinds the started pieces and leaves the session in ERROR.
func (o *Orchestrator) StartSession(mode Mode) error {
	o.mu.Lock()
	if o.state == StateActive || o.state == StateConnecting {
		o.mu.Unlock()
		log.Printf("⚠️ Session already %s, ignoring start", o.state)
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	o.state = StateConnecting
	o.mode = mode
	o.sessionID = "sess_" + uuid.New().String()
	o.cancel = cancel
	sessionID := o.sessionID
	o.mu.Unlock()

	log.Printf("🚀 Starting session %s (%s mode)", sessionID, mode)
	o.history.StartSession(sessionID, string(mode))

	if err := o.client.Connect(ctx); err != nil {
		o.failSession(fmt.Errorf("connect: %w", err))
		return err
	}

	go o.projectConnectionState(ctx)
	go o.consumeText(ctx, sessionID)
	go o.consumeToolCalls(ctx, sessionID)

	// Playback drives the mute policy; capture only reads the flag.
	o.playback.SetOnPlaybackStateChanged(o.capture.SetMuted)

	if err := o.capture.Start(o.client.SendAudio); err != nil {
		o.failSession(fmt.Errorf("audio capture: %w", err))
		return err
	}
	if err := o.playback.Start(o.client.AudioOutput(), o.client.TurnComplete()); err != nil {
		o.failSession(fmt.Errorf("audio playback: %w", err))
		return err
	}

	if mode == ModeGlasses {
		o.glasses.StartStreaming(o.client.SendVideoFrame)
	}
	// Phone video waits for BindCamera: the display surface belongs to the UI
	// layer and becomes available after session start.

	return nil
}

// BindCamera attaches a phone camera source once the UI surface exists.
// Ignored in glasses mode.
func (o *Orchestrator) BindCamera(source video.Source) error {
	o.mu.RLock()
	mode := o.mode
	state := o.state
	o.mu.RUnlock()

	if mode != ModePhone {
		return nil
	}
	if state != StateActive && state != StateConnecting {
		return fmt.Errorf("no session in progress")
	}
	return o.camera.Start(source, o.client.SendVideoFrame)
}

// StopSession tears everything down unconditionally. Every pipeline is
// stopped even if an earlier one misbehaves, and the state becomes IDLE last.
// Safe to call repeatedly and from teardown paths.
func (o *Orchestrator) StopSession() {
	o.stopPipelines()
	o.setState(StateIdle)
	log.Printf("🛑 Session stopped")
}

// failSession unwinds like StopSession but lands in ERROR.
func (o *Orchestrator) failSession(err error) {
	log.Printf("❌ Session failed: %v", err)
	o.stopPipelines()
	o.setState(StateError)
}

func (o *Orchestrator) stopPipelines() {
	o.mu.Lock()
	cancel := o.cancel
	o.cancel = nil
	sessionID := o.sessionID
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	o.client.Disconnect()
	o.capture.Stop()
	o.playback.Stop()
	o.camera.Stop()
	o.glasses.StopStreaming()

	if sessionID != "" {
		o.history.EndSession(sessionID)
	}
}

// projectConnectionState derives session state from connection transitions:
// CONNECTED becomes ACTIVE, ERROR stays ERROR, and DISCONNECTED becomes IDLE
// only when the session was actually running (an initial disconnected report
// must not bounce an idle session).
func (o *Orchestrator) projectConnectionState(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case connState := <-o.client.StateChanges():
			switch connState {
			case gemini.StateConnected:
				o.setState(StateActive)
			case gemini.StateConnecting:
				o.setState(StateConnecting)
			case gemini.StateError:
				o.setState(StateError)
			case gemini.StateDisconnected:
				o.mu.Lock()
				if o.state != StateIdle {
					o.state = StateIdle
					log.Printf("📊 Session state: %s", StateIdle)
				}
				o.mu.Unlock()
			}
		}
	}
}

func (o *Orchestrator) consumeText(ctx context.Context, sessionID string) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-o.client.Text():
			o.history.Append(history.Message{
				ID:        "msg_" + uuid.New().String(),
				SessionID: sessionID,
				Timestamp: time.Now(),
				Speaker:   history.SpeakerGemini,
				Type:      history.TypeText,
				Content:   text,
			})
		}
	}
}

func (o *Orchestrator) consumeToolCalls(ctx context.Context, sessionID string) {
	for {
		select {
		case <-ctx.Done():
			return
		case call := <-o.client.ToolCalls():
			if call.Name == "execute" {
				o.history.Append(history.Message{
					ID:        "msg_" + uuid.New().String(),
					SessionID: sessionID,
					Timestamp: time.Now(),
					Speaker:   history.SpeakerGemini,
					Type:      history.TypeToolCall,
					Content:   "execute: " + call.Args["task"],
				})
			}
			o.router.HandleToolCall(ctx, call)
		}
	}
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	if o.state == s {
		o.mu.Unlock()
		return
	}
	o.state = s
	o.mu.Unlock()
	log.Printf("📊 Session state: %s", s)
}
