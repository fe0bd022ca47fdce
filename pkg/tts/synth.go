package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/temcrew/temserver/pkg/llm"
)

// ProviderConfig configures the speech provider endpoint.
type ProviderConfig struct {
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Voice    string `yaml:"voice"`
	TimeoutS int    `yaml:"timeout_s"`
}

// HTTPSynthesizer calls an OpenAI-compatible /audio/speech endpoint and
// returns the raw audio bytes. The blob is opaque to the server.
type HTTPSynthesizer struct {
	cfg        ProviderConfig
	httpClient *http.Client
}

// NewHTTPSynthesizer creates a synthesizer for the given provider.
func NewHTTPSynthesizer(cfg ProviderConfig) *HTTPSynthesizer {
	cfg.BaseURL = llm.NormalizeBaseURL(cfg.BaseURL)
	timeout := time.Duration(cfg.TimeoutS) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPSynthesizer{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Synthesize performs one blocking synthesis call.
func (s *HTTPSynthesizer) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	voice := req.Voice
	if voice == "" {
		voice = s.cfg.Voice
	}
	body, err := json.Marshal(speechRequest{
		Model:          s.cfg.Model,
		Input:          req.Text,
		Voice:          voice,
		ResponseFormat: "mp3",
	})
	if err != nil {
		return nil, fmt.Errorf("encoding speech request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building speech request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling speech provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("speech provider returned status %d: %s", resp.StatusCode, snippet)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading audio body: %w", err)
	}
	return audio, nil
}
