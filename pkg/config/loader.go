package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Load resolves the configuration in three layers: built-in defaults, the
// YAML file at path (optional; a missing file is not an error), then
// environment overrides. The result is validated before return.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var overlay Config
		if err := yaml.Unmarshal(ExpandEnv(data), &overlay); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		// Non-zero overlay values override defaults.
		if err := mergo.Merge(cfg, &overlay, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merging %s: %w", path, err)
		}
		slog.Info("Configuration file loaded", "path", path)
	case os.IsNotExist(err):
		slog.Info("No configuration file, using defaults", "path", path)
	default:
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides layers environment variables on top of the file.
// OPENAI_API_KEY and CUSTOM_BASE_URL fill any provider that has no explicit
// value of its own.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.HTTPPort = port
		} else {
			slog.Warn("Ignoring invalid HTTP_PORT", "value", v)
		}
	}
	if v := os.Getenv("LOG_DIR"); v != "" {
		cfg.LogDir = v
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		setIfEmpty(&cfg.AI.Slow.APIKey, key)
		setIfEmpty(&cfg.AI.Fast.APIKey, key)
		setIfEmpty(&cfg.TTS.Provider.APIKey, key)
	}
	if base := os.Getenv("CUSTOM_BASE_URL"); base != "" {
		cfg.AI.Slow.BaseURL = base
		cfg.AI.Fast.BaseURL = base
		cfg.TTS.Provider.BaseURL = base
	}
	if v := os.Getenv("TTS_VOICE"); v != "" {
		cfg.TTS.Provider.Voice = v
	}
	if v := os.Getenv("TTS_DISABLED"); v == "1" || v == "true" {
		disabled := false
		cfg.TTS.Enabled = &disabled
	}
}

func setIfEmpty(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
