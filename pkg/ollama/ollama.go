// Package ollama streams chat completions from an Ollama server.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the default Ollama API URL.
	DefaultBaseURL = "http://localhost:11434"

	// DefaultModel is the default chat model.
	DefaultModel = "qwen2.5:7b"

	defaultTimeout = 5 * time.Minute
)

// ErrStop may be returned by a token callback to end the stream early
// without an error.
var ErrStop = errors.New("stop streaming")

// Config holds configuration for the Ollama chat client.
type Config struct {
	// BaseURL is the Ollama API URL. Defaults to DefaultBaseURL if empty.
	BaseURL string

	// Model is the chat model. Defaults to DefaultModel if empty.
	Model string

	// Temperature is passed through when non-nil.
	Temperature *float64

	// Timeout bounds a whole streamed response. Defaults to 5 minutes.
	Timeout time.Duration
}

// Client is a streaming Ollama chat client.
type Client struct {
	baseURL     string
	model       string
	temperature *float64
	httpClient  *http.Client
	logger      *slog.Logger
}

// New creates a chat client.
func New(cfg Config, logger *slog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		temperature: cfg.Temperature,
		// LLM responses can be slow
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// ChatStream sends a system and a user message and calls fn with each
// non-empty content token as it arrives. It returns when the model
// reports done, the body ends, ctx is cancelled, or fn returns an error.
// fn returning ErrStop ends the stream with a nil error.
func (c *Client) ChatStream(ctx context.Context, system, user string, fn func(token string) error) error {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Stream: true,
	}
	if c.temperature != nil {
		reqBody.Options = &chatOptions{Temperature: c.temperature}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	c.logger.Debug("sending chat request",
		"ollama_url", c.baseURL,
		"model", c.model,
		"system_bytes", len(system),
		"user_bytes", len(user),
	)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sending request to ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(respBody))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var chunk streamChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			c.logger.Debug("failed to parse stream chunk",
				"error", err,
				"line", string(line),
			)
			continue
		}

		if chunk.Error != "" {
			return fmt.Errorf("ollama stream error: %s", chunk.Error)
		}

		if chunk.Message.Content != "" {
			if err := fn(chunk.Message.Content); err != nil {
				if errors.Is(err, ErrStop) {
					return nil
				}
				return err
			}
		}

		if chunk.Done {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stream: %w", err)
	}

	return nil
}

// Collect runs ChatStream and returns the concatenated tokens.
func (c *Client) Collect(ctx context.Context, system, user string) (string, error) {
	var sb strings.Builder
	err := c.ChatStream(ctx, system, user, func(token string) error {
		sb.WriteString(token)
		return nil
	})
	return sb.String(), err
}
