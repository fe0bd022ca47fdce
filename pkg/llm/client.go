// Package llm is a minimal client for OpenAI-compatible chat-completions
// APIs. Responses stream as SSE chunks; Chat accumulates the stream and
// returns the full text, since partial JSON is not actionable.
package llm

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
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chunk is one streamed delta. A terminal error chunk carries Err.
type Chunk struct {
	Delta string
	Err   error
}

// ProviderConfig selects a model endpoint. Fast and slow providers share
// the shape.
type ProviderConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	TimeoutS    int     `yaml:"timeout_s"`
}

// NormalizeBaseURL fills in the scheme and the /v1 path segment that
// OpenAI-compatible vendors expect, so config may carry a bare host.
func NormalizeBaseURL(raw string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	if u == "" {
		return ""
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "https://" + u
	}
	if !strings.HasSuffix(u, "/v1") {
		u += "/v1"
	}
	return u
}

// Client calls one chat-completions endpoint. The underlying HTTP client is
// shared across rooms (connection pool).
type Client struct {
	cfg        ProviderConfig
	httpClient *http.Client
}

// New creates a client for the provider. The base URL is normalized.
func New(cfg ProviderConfig) *Client {
	cfg.BaseURL = NormalizeBaseURL(cfg.BaseURL)
	timeout := time.Duration(cfg.TimeoutS) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream"`
}

type streamResponse struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

// Stream sends the messages and returns a channel of deltas. The channel is
// closed when the stream ends; a failed request surfaces as a single error
// chunk.
func (c *Client) Stream(ctx context.Context, messages []Message) (<-chan Chunk, error) {
	if c.cfg.BaseURL == "" {
		return nil, fmt.Errorf("llm provider has no base URL configured")
	}
	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
		Stream:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	out := make(chan Chunk, 100)
	go func() {
		defer close(out)
		if err := c.readStream(req, out); err != nil {
			out <- Chunk{Err: err}
		}
	}()
	return out, nil
}

func (c *Client) readStream(req *http.Request, out chan<- Chunk) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var wrapper struct {
			Error *apiError `json:"error"`
		}
		if json.Unmarshal(body, &wrapper) == nil && wrapper.Error != nil {
			return fmt.Errorf("chat request failed with status %d: %s", resp.StatusCode, wrapper.Error.Message)
		}
		return fmt.Errorf("chat request failed with status %d: %s", resp.StatusCode, string(body))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if !bytes.HasPrefix(line, []byte("data: ")) {
			continue
		}
		data := bytes.TrimPrefix(line, []byte("data: "))
		if bytes.Equal(data, []byte("[DONE]")) {
			return nil
		}
		var chunk streamResponse
		if err := json.Unmarshal(data, &chunk); err != nil {
			continue
		}
		if chunk.Error != nil {
			return fmt.Errorf("chat stream error: %s", chunk.Error.Message)
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				out <- Chunk{Delta: choice.Delta.Content}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading chat stream: %w", err)
	}
	return nil
}

// Chat streams a completion and returns the accumulated text.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	ch, err := c.Stream(ctx, messages)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for chunk := range ch {
		if chunk.Err != nil {
			return "", chunk.Err
		}
		sb.WriteString(chunk.Delta)
	}
	return sb.String(), nil
}
