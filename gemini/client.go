package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/visionclaw/visionclaw/config"
)

// ConnectionState tracks the lifecycle of the Live API transport.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateError
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

const (
	dialTimeout     = 15 * time.Second
	writeTimeout    = 10 * time.Second
	maxMessageSize  = 4 * 1024 * 1024
	audioQueueSize  = 256
	toolCallQueue   = 16
	textBufferSize  = 64
	stateBufferSize = 8
)

// Client is the WebSocket client for the Gemini Live API.
//
// It owns the bidirectional connection: handshake (setup + setupComplete),
// gated outbound sends, and demultiplexing of inbound frames into typed
// channels. It never reconnects on its own; retry policy belongs to the
// session orchestrator.
type Client struct {
	cfg *config.Config

	mu     sync.RWMutex
	state  ConnectionState
	conn   *websocket.Conn
	cancel context.CancelFunc

	// writeMu serializes all transport writes.
	writeMu sync.Mutex

	audioOut     chan []byte
	toolCalls    chan FunctionCall
	turnComplete chan struct{}
	text         chan string
	states       chan ConnectionState
}

// NewClient creates a disconnected client. Call Connect to open the session.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		cfg:          cfg,
		state:        StateDisconnected,
		audioOut:     make(chan []byte, audioQueueSize),
		toolCalls:    make(chan FunctionCall, toolCallQueue),
		turnComplete: make(chan struct{}, 1),
		text:         make(chan string, textBufferSize),
		states:       make(chan ConnectionState, stateBufferSize),
	}
}

// AudioOutput yields inbound PCM chunks (24kHz mono 16-bit) in arrival order.
func (c *Client) AudioOutput() <-chan []byte { return c.audioOut }

// ToolCalls yields tool invocations requested by the model.
func (c *Client) ToolCalls() <-chan FunctionCall { return c.toolCalls }

// TurnComplete signals that the model finished its response turn. The channel
// is conflated: only the most recent pending signal is retained.
func (c *Client) TurnComplete() <-chan struct{} { return c.turnComplete }

// Text yields model text parts for conversation logging. Delivery is lossy if
// nobody is consuming.
func (c *Client) Text() <-chan string { return c.text }

// StateChanges yields connection state transitions.
func (c *Client) StateChanges() <-chan ConnectionState { return c.states }

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Connect opens the transport and sends the setup message. It is a no-op when
// already connecting or connected. The state becomes CONNECTED only once the
// server acknowledges setup with a setupComplete frame, not on transport open.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateConnected {
		c.mu.Unlock()
		log.Printf("⚠️ Gemini client already %s, ignoring connect", c.state)
		return nil
	}
	c.state = StateConnecting
	c.mu.Unlock()
	c.notifyState(StateConnecting)

	dialCtx, cancelDial := context.WithTimeout(ctx, dialTimeout)
	defer cancelDial()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.cfg.WebsocketURL(), nil)
	if err != nil {
		c.setState(StateError)
		return fmt.Errorf("failed to dial Live API: %w", err)
	}
	conn.SetReadLimit(maxMessageSize)

	setup := NewSetupMessage(c.cfg.Model, c.cfg.VoiceName, config.SystemInstruction)
	if err := c.writeJSON(conn, setup); err != nil {
		_ = conn.Close()
		c.setState(StateError)
		return fmt.Errorf("failed to send setup message: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.conn = conn
	c.cancel = cancel
	c.mu.Unlock()

	log.Printf("📡 Gemini transport open, awaiting setup acknowledgment (%s)", c.cfg.Model)
	go c.readLoop(loopCtx, conn)
	return nil
}

// SendAudio forwards one outbound PCM frame (16kHz mono 16-bit). Silently
// dropped unless the connection is CONNECTED.
func (c *Client) SendAudio(pcm []byte) {
	mime := fmt.Sprintf("%s;rate=%d", MimeAudioPCMPrefix, c.cfg.InputSampleRate)
	c.sendGated(NewRealtimeInputMessage(mime, pcm))
}

// SendVideoFrame forwards one JPEG frame. Silently dropped unless CONNECTED.
func (c *Client) SendVideoFrame(jpeg []byte) {
	c.sendGated(NewRealtimeInputMessage(MimeImageJPEG, jpeg))
}

// SendToolResponse answers a tool call by id. Silently dropped unless
// CONNECTED: a response outliving its connection is accepted lossy behavior.
func (c *Client) SendToolResponse(callID, result string) {
	c.sendGated(NewToolResponseMessage(callID, result))
}

// sendGated writes msg only when the connection is CONNECTED.
func (c *Client) sendGated(msg any) {
	c.mu.RLock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.RUnlock()

	if !connected || conn == nil {
		return
	}
	if err := c.writeJSON(conn, msg); err != nil {
		c.writeFailure(conn, err)
	}
}

// writeFailure transitions to ERROR unless conn is no longer the active
// transport: a send racing Disconnect fails its write on the torn-down conn,
// and Disconnect has already driven the state to DISCONNECTED.
func (c *Client) writeFailure(conn *websocket.Conn, err error) {
	c.mu.RLock()
	stale := c.conn != conn
	c.mu.RUnlock()
	if stale {
		return
	}
	log.Printf("❌ Gemini write failed: %v", err)
	c.setState(StateError)
}

func (c *Client) writeJSON(conn *websocket.Conn, msg any) error {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Disconnect cancels the read loop, closes the transport with a normal
// closure code, and transitions to DISCONNECTED unconditionally.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
			time.Now().Add(2*time.Second))
		c.writeMu.Unlock()
		_ = conn.Close()
	}

	c.setState(StateDisconnected)
}

// readLoop reads and dispatches inbound frames until the transport fails or
// the loop context is cancelled. Malformed frames are logged and skipped.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				// Disconnect already drove the state transition.
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("🔌 Gemini connection closed by server")
				c.setState(StateDisconnected)
				return
			}
			log.Printf("❌ Gemini read error: %v", err)
			c.setState(StateError)
			return
		}

		event, err := decodeServerMessage(data)
		if err != nil {
			log.Printf("⚠️ Failed to parse Gemini message, skipping: %v", err)
			continue
		}
		c.dispatch(ctx, event)
	}
}

func (c *Client) dispatch(ctx context.Context, event ServerEvent) {
	switch {
	case event.SetupComplete:
		log.Printf("✅ Gemini setup complete")
		c.setState(StateConnected)

	case event.ServerContent != nil:
		c.dispatchServerContent(ctx, event.ServerContent)

	case event.ToolCall != nil:
		for _, call := range event.ToolCall.FunctionCalls {
			log.Printf("🔧 Received tool call: %s (id: %s)", call.Name, call.ID)
			select {
			case c.toolCalls <- call:
			case <-ctx.Done():
				return
			}
		}

	case event.Unrecognized:
		// Unknown frame shape. Explicit no-op.
	}
}

func (c *Client) dispatchServerContent(ctx context.Context, content *ServerContent) {
	if content.ModelTurn != nil {
		for _, part := range content.ModelTurn.Parts {
			if text := strings.TrimSpace(part.Text); text != "" {
				select {
				case c.text <- part.Text:
				default:
					// Lossy broadcast: dropping unconsumed text is acceptable.
				}
			}
			if part.InlineData != nil && strings.HasPrefix(part.InlineData.MimeType, MimeAudioPCMPrefix) {
				pcm, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
				if err != nil {
					log.Printf("⚠️ Failed to decode inbound audio, skipping: %v", err)
					continue
				}
				select {
				case c.audioOut <- pcm:
				case <-ctx.Done():
					return
				}
			}
		}
	}

	if content.TurnComplete {
		log.Printf("📥 Gemini turn complete")
		select {
		case c.turnComplete <- struct{}{}:
		default:
			// A signal is already pending; conflate.
		}
	}
}

func (c *Client) setState(s ConnectionState) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()
	c.notifyState(s)
}

// notifyState never blocks the dispatch path. When the observer falls behind,
// the oldest pending transition is evicted so the latest state always lands.
func (c *Client) notifyState(s ConnectionState) {
	for {
		select {
		case c.states <- s:
			return
		default:
		}
		select {
		case <-c.states:
		default:
		}
	}
}
