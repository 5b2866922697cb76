// Package openai provides a streaming chat model for OpenAI-compatible
// APIs (OpenAI, Azure OpenAI, DeepSeek, local inference servers).
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/meridianhq/ragpipe/internal/core/domain"
	"github.com/meridianhq/ragpipe/internal/core/ports/driven"
)

// Ensure Model implements the interface.
var _ driven.ChatModel = (*Model)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 120 * time.Second
)

// Config holds configuration for the OpenAI chat model.
type Config struct {
	// APIKey is the API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	BaseURL string

	// Model is the chat model to use (default: gpt-4o-mini).
	Model string

	// Timeout bounds the whole streamed response (default: 120s).
	Timeout time.Duration
}

// Model streams completions through the /chat/completions endpoint with
// server-sent events.
type Model struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// chatRequest is the API request format.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

// chatMessage is the wire form of one conversation message.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// streamEvent is one SSE data payload from the API.
type streamEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// New creates a new OpenAI chat model.
func New(cfg Config) (*Model, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required: %w", domain.ErrInvalidConfig)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Model{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

// Stream sends the conversation and returns a channel of response deltas.
// The channel is closed when the model finishes; a mid-stream failure is
// delivered as a final delta with Err set. Errors before the stream opens
// are returned directly.
func (m *Model) Stream(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (<-chan driven.StreamDelta, error) {
	wireMessages := make([]chatMessage, len(messages))
	for i, msg := range messages {
		wireMessages[i] = chatMessage{Role: msg.Role, Content: msg.Content}
	}

	jsonBody, err := json.Marshal(chatRequest{
		Model:       m.model,
		Messages:    wireMessages,
		Stream:      true,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		m.baseURL+"/chat/completions",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("openai status %d: %s", resp.StatusCode, string(body))
	}

	deltas := make(chan driven.StreamDelta)
	go m.readStream(ctx, resp.Body, deltas)
	return deltas, nil
}

// readStream parses SSE lines from the response body and forwards content
// deltas until [DONE], a finish_reason, or an error.
func (m *Model) readStream(ctx context.Context, body io.ReadCloser, deltas chan<- driven.StreamDelta) {
	defer close(deltas)
	defer body.Close()

	send := func(d driven.StreamDelta) bool {
		select {
		case deltas <- d:
			return true
		case <-ctx.Done():
			return false
		}
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			return
		}

		var event streamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			send(driven.StreamDelta{Err: fmt.Errorf("decode stream event: %w", err)})
			return
		}
		if event.Error != nil {
			send(driven.StreamDelta{Err: fmt.Errorf("openai stream error: %s", event.Error.Message)})
			return
		}
		if len(event.Choices) == 0 {
			continue
		}

		choice := event.Choices[0]
		if choice.Delta.Content != "" {
			if !send(driven.StreamDelta{Content: choice.Delta.Content}) {
				return
			}
		}
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			send(driven.StreamDelta{Err: ctx.Err()})
			return
		}
		send(driven.StreamDelta{Err: fmt.Errorf("read stream: %w", err)})
	}
}

// ModelName returns the name of the chat model being used.
func (m *Model) ModelName() string {
	return m.model
}

// Close releases resources.
func (m *Model) Close() error {
	return nil
}
