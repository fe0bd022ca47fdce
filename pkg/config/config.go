// Package config loads server configuration: built-in defaults, an optional
// temserver.yaml overlay, then environment overrides.
package config

import (
	"fmt"

	"github.com/temcrew/temserver/pkg/llm"
	"github.com/temcrew/temserver/pkg/tts"
)

// Config is the resolved server configuration.
type Config struct {
	HTTPPort int           `yaml:"http_port"`
	LogDir   string        `yaml:"log_dir"`
	AI       AIConfig      `yaml:"ai"`
	TTS      TTSConfig     `yaml:"tts"`
	Gateway  GatewayConfig `yaml:"gateway"`
}

// AIConfig holds the two model endpoints of the dual-process agent. The
// slow model deliberates; the fast model answers tightly-scoped questions.
type AIConfig struct {
	Slow llm.ProviderConfig `yaml:"slow"`
	Fast llm.ProviderConfig `yaml:"fast"`
}

// TTSConfig configures the speech fan-out pool.
type TTSConfig struct {
	// Enabled defaults to true; nil means unset in YAML.
	Enabled   *bool              `yaml:"enabled"`
	Provider  tts.ProviderConfig `yaml:"provider"`
	Workers   int                `yaml:"workers"`
	QueueSize int                `yaml:"queue_size"`
}

// SpeechEnabled resolves the Enabled tristate.
func (t TTSConfig) SpeechEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

// GatewayConfig configures the WebSocket transport.
type GatewayConfig struct {
	WriteTimeoutS int `yaml:"write_timeout_s"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTPPort: 8021,
		LogDir:   "logs",
		AI: AIConfig{
			Slow: llm.ProviderConfig{
				BaseURL:     "https://api.openai.com/v1",
				Model:       "gpt-4o",
				Temperature: 0.7,
				TimeoutS:    60,
			},
			Fast: llm.ProviderConfig{
				BaseURL:     "https://api.openai.com/v1",
				Model:       "gpt-4o-mini",
				Temperature: 0.3,
				TimeoutS:    30,
			},
		},
		TTS: TTSConfig{
			Provider: tts.ProviderConfig{
				BaseURL:  "https://api.openai.com/v1",
				Model:    "tts-1",
				Voice:    "onyx",
				TimeoutS: 60,
			},
			Workers:   4,
			QueueSize: 64,
		},
		Gateway: GatewayConfig{
			WriteTimeoutS: 10,
		},
	}
}

// Validate checks the resolved configuration.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("http_port %d out of range", c.HTTPPort)
	}
	if c.LogDir == "" {
		return fmt.Errorf("log_dir is required")
	}
	for name, p := range map[string]llm.ProviderConfig{"ai.slow": c.AI.Slow, "ai.fast": c.AI.Fast} {
		if p.Model == "" {
			return fmt.Errorf("%s.model is required", name)
		}
		if p.Temperature < 0 || p.Temperature > 2 {
			return fmt.Errorf("%s.temperature %.2f out of range [0, 2]", name, p.Temperature)
		}
	}
	if c.TTS.SpeechEnabled() {
		if c.TTS.Workers < 1 {
			return fmt.Errorf("tts.workers must be at least 1")
		}
		if c.TTS.QueueSize < 1 {
			return fmt.Errorf("tts.queue_size must be at least 1")
		}
	}
	if c.Gateway.WriteTimeoutS < 1 {
		return fmt.Errorf("gateway.write_timeout_s must be at least 1")
	}
	return nil
}
