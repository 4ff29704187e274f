package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	placeholderAPIKey       = "YOUR_GEMINI_API_KEY"
	placeholderGatewayToken = "YOUR_OPENCLAW_GATEWAY_TOKEN"

	defaultModel = "models/gemini-2.5-flash-native-audio-preview-12-2025"
	defaultWSURL = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"
)

// Config holds all engine configuration
type Config struct {
	GeminiAPIKey     string
	Model            string
	WebsocketBaseURL string
	VoiceName        string

	// Audio: outbound 16kHz mono 16-bit PCM in 100ms chunks,
	// inbound 24kHz mono 16-bit PCM. The chunk cadence is part of
	// the wire contract with the Live API.
	InputSampleRate  int
	OutputSampleRate int
	ChunkDuration    time.Duration

	// Video: at most one JPEG frame per interval, reduced quality.
	VideoFrameInterval time.Duration
	VideoJPEGQuality   int
	VideoMaxDimension  int

	// OpenClaw task-execution gateway (optional).
	OpenClawHost  string
	OpenClawPort  int
	OpenClawToken string

	// Optional Redis persistence for conversation history.
	RedisURL      string
	RedisPassword string
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig() (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	config := &Config{
		Model:              defaultModel,
		WebsocketBaseURL:   defaultWSURL,
		VoiceName:          "Aoede",
		InputSampleRate:    16000,
		OutputSampleRate:   24000,
		ChunkDuration:      100 * time.Millisecond,
		VideoFrameInterval: 1000 * time.Millisecond,
		VideoJPEGQuality:   50,
		VideoMaxDimension:  1024,
		OpenClawPort:       18789,
	}

	// Required: GEMINI_API_KEY
	config.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	if config.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	// Optional: GEMINI_MODEL
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		config.Model = model
	}

	// Optional: GEMINI_WS_URL
	if wsURL := os.Getenv("GEMINI_WS_URL"); wsURL != "" {
		config.WebsocketBaseURL = wsURL
	}

	// Optional: GEMINI_VOICE
	if voice := os.Getenv("GEMINI_VOICE"); voice != "" {
		config.VoiceName = voice
	}

	// Optional: VIDEO_FRAME_INTERVAL (in milliseconds)
	if interval := os.Getenv("VIDEO_FRAME_INTERVAL"); interval != "" {
		ms, err := strconv.Atoi(interval)
		if err != nil || ms <= 0 {
			return nil, fmt.Errorf("invalid VIDEO_FRAME_INTERVAL: %q", interval)
		}
		config.VideoFrameInterval = time.Duration(ms) * time.Millisecond
	}

	// Optional: VIDEO_JPEG_QUALITY (1-100)
	if quality := os.Getenv("VIDEO_JPEG_QUALITY"); quality != "" {
		q, err := strconv.Atoi(quality)
		if err != nil || q < 1 || q > 100 {
			return nil, fmt.Errorf("invalid VIDEO_JPEG_QUALITY: %q", quality)
		}
		config.VideoJPEGQuality = q
	}

	// Optional: OPENCLAW_HOST
	if host := os.Getenv("OPENCLAW_HOST"); host != "" {
		config.OpenClawHost = host
	}

	// Optional: OPENCLAW_PORT
	if port := os.Getenv("OPENCLAW_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid OPENCLAW_PORT: %w", err)
		}
		config.OpenClawPort = p
	}

	// Optional: OPENCLAW_GATEWAY_TOKEN
	config.OpenClawToken = os.Getenv("OPENCLAW_GATEWAY_TOKEN")

	// Optional: REDIS_URL / REDIS_PASSWORD (history persistence)
	config.RedisURL = os.Getenv("REDIS_URL")
	config.RedisPassword = os.Getenv("REDIS_PASSWORD")

	return config, nil
}

// WebsocketURL returns the full Live API endpoint with the API key attached.
func (c *Config) WebsocketURL() string {
	return c.WebsocketBaseURL + "?key=" + c.GeminiAPIKey
}

// IsConfigured reports whether a real Gemini API key is present.
func (c *Config) IsConfigured() bool {
	return c.GeminiAPIKey != "" && c.GeminiAPIKey != placeholderAPIKey
}

// IsOpenClawConfigured reports whether the task-execution gateway is usable.
// A placeholder token or hostname counts as unconfigured, not as an error.
func (c *Config) IsOpenClawConfigured() bool {
	return c.OpenClawToken != "" &&
		c.OpenClawToken != placeholderGatewayToken &&
		c.OpenClawHost != "" &&
		!strings.Contains(c.OpenClawHost, "YOUR_")
}

// OpenClawURL returns the gateway chat-completions endpoint.
func (c *Config) OpenClawURL() string {
	return fmt.Sprintf("%s:%d/v1/chat/completions", c.OpenClawHost, c.OpenClawPort)
}

// ChunkSize returns the outbound audio frame size in bytes
// (16-bit mono PCM for one chunk duration).
func (c *Config) ChunkSize() int {
	return c.InputSampleRate * 2 * int(c.ChunkDuration.Milliseconds()) / 1000
}
