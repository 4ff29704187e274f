package openclaw

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"github.com/visionclaw/visionclaw/config"
)

// ErrNotConfigured is returned when the gateway credentials are missing or
// placeholders. Detected before any network attempt.
var ErrNotConfigured = errors.New("OpenClaw gateway is not configured")

const requestTimeout = 120 * time.Second

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Bridge is the HTTP client for the OpenClaw task-execution gateway.
type Bridge struct {
	cfg        *config.Config
	httpClient *http.Client
}

// NewBridge creates a gateway bridge from config.
func NewBridge(cfg *config.Config) *Bridge {
	return &Bridge{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// ExecuteTask sends one task to the gateway's chat-completions endpoint and
// returns the extracted result text. One attempt, no retries.
func (b *Bridge) ExecuteTask(ctx context.Context, task string) (string, error) {
	if !b.cfg.IsOpenClawConfigured() {
		return "", ErrNotConfigured
	}

	body, err := sonic.Marshal(chatRequest{
		Model:    "openclaw",
		Messages: []chatMessage{{Role: "user", Content: task}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.OpenClawURL(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.cfg.OpenClawToken)

	log.Printf("📤 Sending task to OpenClaw: %s", task)
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("OpenClaw request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("OpenClaw API error: %d %s", resp.StatusCode, resp.Status)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read gateway response: %w", err)
	}

	var parsed chatResponse
	if err := sonic.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse gateway response: %w", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == nil {
		return "", fmt.Errorf("could not extract content from gateway response")
	}

	return *parsed.Choices[0].Message.Content, nil
}
