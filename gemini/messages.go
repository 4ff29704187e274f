package gemini

import (
	"encoding/base64"

	"github.com/bytedance/sonic"
)

// MIME types for realtime media chunks.
const (
	MimeAudioPCMPrefix = "audio/pcm"
	MimeImageJPEG      = "image/jpeg"
)

// --- Outbound messages (engine -> Gemini) ---

// SetupMessage is sent exactly once after the transport opens.
type SetupMessage struct {
	Setup SetupConfig `json:"setup"`
}

type SetupConfig struct {
	Model             string           `json:"model"`
	GenerationConfig  GenerationConfig `json:"generationConfig"`
	SystemInstruction *Content         `json:"systemInstruction,omitempty"`
	Tools             []Tool           `json:"tools,omitempty"`
}

type GenerationConfig struct {
	ResponseModalities []string      `json:"responseModalities"`
	SpeechConfig       *SpeechConfig `json:"speechConfig,omitempty"`
}

type SpeechConfig struct {
	VoiceConfig VoiceConfig `json:"voiceConfig"`
}

type VoiceConfig struct {
	PrebuiltVoiceConfig PrebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type PrebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type Content struct {
	Parts []Part `json:"parts"`
}

type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64 encoded
}

type Tool struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations"`
}

type FunctionDeclaration struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  FunctionParameters `json:"parameters"`
}

type FunctionParameters struct {
	Type       string                    `json:"type"`
	Properties map[string]PropertySchema `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

type PropertySchema struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// RealtimeInputMessage streams raw media chunks mid-session.
type RealtimeInputMessage struct {
	RealtimeInput RealtimeInput `json:"realtimeInput"`
}

type RealtimeInput struct {
	MediaChunks []MediaChunk `json:"mediaChunks"`
}

type MediaChunk struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64 encoded
}

// ToolResponseMessage answers a tool call by id.
type ToolResponseMessage struct {
	ToolResponse ToolResponse `json:"toolResponse"`
}

type ToolResponse struct {
	FunctionResponses []FunctionResponse `json:"functionResponses"`
}

type FunctionResponse struct {
	ID       string            `json:"id"`
	Response map[string]string `json:"response"`
}

// --- Inbound messages (Gemini -> engine) ---

type serverMessage struct {
	SetupComplete any            `json:"setupComplete"`
	ServerContent *ServerContent `json:"serverContent"`
	ToolCall      *ToolCallBatch `json:"toolCall"`
}

type ServerContent struct {
	ModelTurn    *ModelTurn `json:"modelTurn"`
	TurnComplete bool       `json:"turnComplete"`
}

type ModelTurn struct {
	Parts []Part `json:"parts"`
}

type ToolCallBatch struct {
	FunctionCalls []FunctionCall `json:"functionCalls"`
}

// FunctionCall is a single tool invocation requested by the model.
type FunctionCall struct {
	ID   string            `json:"id"`
	Name string            `json:"name"`
	Args map[string]string `json:"args"`
}

// ServerEvent is the decoded form of one inbound frame. Exactly one of the
// shape fields is set; a frame matching none of the known shapes decodes to
// Unrecognized, which dispatch treats as a no-op.
type ServerEvent struct {
	SetupComplete bool
	ServerContent *ServerContent
	ToolCall      *ToolCallBatch
	Unrecognized  bool
}

// decodeServerMessage parses one inbound text frame into a tagged event.
func decodeServerMessage(data []byte) (ServerEvent, error) {
	var msg serverMessage
	if err := sonic.Unmarshal(data, &msg); err != nil {
		return ServerEvent{}, err
	}
	switch {
	case msg.SetupComplete != nil:
		return ServerEvent{SetupComplete: true}, nil
	case msg.ServerContent != nil:
		return ServerEvent{ServerContent: msg.ServerContent}, nil
	case msg.ToolCall != nil:
		return ServerEvent{ToolCall: msg.ToolCall}, nil
	default:
		return ServerEvent{Unrecognized: true}, nil
	}
}

// NewSetupMessage builds the session setup envelope: model, audio-only
// response modality, voice selection, system instruction, and the execute
// tool declaration.
func NewSetupMessage(model, voiceName, systemInstruction string) *SetupMessage {
	return &SetupMessage{
		Setup: SetupConfig{
			Model: model,
			GenerationConfig: GenerationConfig{
				ResponseModalities: []string{"AUDIO"},
				SpeechConfig: &SpeechConfig{
					VoiceConfig: VoiceConfig{
						PrebuiltVoiceConfig: PrebuiltVoiceConfig{VoiceName: voiceName},
					},
				},
			},
			SystemInstruction: &Content{
				Parts: []Part{{Text: systemInstruction}},
			},
			Tools: []Tool{ExecuteToolDeclaration()},
		},
	}
}

// NewRealtimeInputMessage wraps one media payload in a realtime-input envelope.
func NewRealtimeInputMessage(mimeType string, data []byte) *RealtimeInputMessage {
	return &RealtimeInputMessage{
		RealtimeInput: RealtimeInput{
			MediaChunks: []MediaChunk{
				{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(data),
				},
			},
		},
	}
}

// NewToolResponseMessage wraps a single tool result keyed by call id.
func NewToolResponseMessage(callID, result string) *ToolResponseMessage {
	return &ToolResponseMessage{
		ToolResponse: ToolResponse{
			FunctionResponses: []FunctionResponse{
				{
					ID:       callID,
					Response: map[string]string{"result": result},
				},
			},
		},
	}
}

// ExecuteToolDeclaration declares the single "execute" tool that routes all
// actionable requests to the OpenClaw gateway.
func ExecuteToolDeclaration() Tool {
	return Tool{
		FunctionDeclarations: []FunctionDeclaration{
			{
				Name: "execute",
				Description: "Execute a task using the connected personal assistant (OpenClaw). " +
					"Use this for ANY action: sending messages, web search, managing lists, " +
					"setting reminders, creating notes, controlling smart home devices, etc.",
				Parameters: FunctionParameters{
					Type: "object",
					Properties: map[string]PropertySchema{
						"task": {
							Type: "string",
							Description: "Detailed description of the task to execute. " +
								"Include all relevant context: names, content, platforms, quantities.",
						},
					},
					Required: []string{"task"},
				},
			},
		},
	}
}
