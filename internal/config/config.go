// Package config loads go-xeo configuration from an optional YAML file,
// a .env file and XEO_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment overrides. Nested keys use a
// double underscore: XEO_MODEL__BASE_URL sets model.base_url.
const EnvPrefix = "XEO_"

// DefaultPath is the config file read when no path is given.
const DefaultPath = "config.yaml"

// Model modes.
const (
	ModeRemote    = "remote"
	ModeSimulated = "simulated"
	ModeOff       = "off"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Model     ModelConfig     `koanf:"model"`
	Confirm   ConfirmConfig   `koanf:"confirm"`
	Crop      CropConfig      `koanf:"crop"`
	History   HistoryConfig   `koanf:"history"`
	Cache     CacheConfig     `koanf:"cache"`
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port      int    `koanf:"port"`
	StaticDir string `koanf:"static_dir"` // optional frontend build to serve at /
	BodyLimit int    `koanf:"body_limit"` // bytes; screenshots arrive base64 encoded
}

type ModelConfig struct {
	Mode      string        `koanf:"mode"` // remote, simulated, off
	BaseURL   string        `koanf:"base_url"`
	APIKey    string        `koanf:"api_key"`
	Name      string        `koanf:"name"`
	Timeout   time.Duration `koanf:"timeout"`
	Retries   int           `koanf:"retries"`
	MaxTokens int           `koanf:"max_tokens"`
	// Token budgets per task.
	AnalyzeMaxTokens int           `koanf:"analyze_max_tokens"`
	IntentMaxTokens  int           `koanf:"intent_max_tokens"`
	ChatMaxTokens    int           `koanf:"chat_max_tokens"`
	NativeTools      bool          `koanf:"native_tools"` // also offer the catalog as OpenAI tools
	Fallback         bool          `koanf:"fallback"`     // remote mode: answer from the simulator when the model fails
	Latency          time.Duration `koanf:"latency"`      // simulated mode only
}

// ConfirmConfig points at the remote device authority. An empty BaseURL
// disables remote confirmation.
type ConfirmConfig struct {
	BaseURL      string        `koanf:"base_url"`
	Token        string        `koanf:"token"`
	ClientID     string        `koanf:"client_id"`
	ClientSecret string        `koanf:"client_secret"`
	TokenURL     string        `koanf:"token_url"`
	Timeout      time.Duration `koanf:"timeout"`
}

type CropConfig struct {
	Save   bool    `koanf:"save"`
	Dir    string  `koanf:"dir"`
	Radius float64 `koanf:"radius"`
}

type HistoryConfig struct {
	MaxTurns int `koanf:"max_turns"`
}

type CacheConfig struct {
	UISize int `koanf:"ui_size"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

type TelemetryConfig struct {
	Tracing bool `koanf:"tracing"`
	Metrics bool `koanf:"metrics"`
}

var defaults = map[string]any{
	"server.port":              5001,
	"server.body_limit":        16 * 1024 * 1024,
	"model.mode":               ModeSimulated,
	"model.base_url":           "http://localhost:8000/v1",
	"model.name":               "microsoft/Phi-4-multimodal-instruct",
	"model.timeout":            "120s",
	"model.retries":            1,
	"model.max_tokens":         400,
	"model.analyze_max_tokens": 256,
	"model.intent_max_tokens":  400,
	"model.chat_max_tokens":    250,
	"confirm.timeout":          "5s",
	"crop.dir":                 "cropped_images",
	"crop.radius":              0.1,
	"history.max_turns":        10,
	"cache.ui_size":            32,
	"log.level":                "info",
	"telemetry.metrics":        true,
}

// Load reads configuration. Precedence, lowest first: defaults, YAML file,
// .env, process environment. A missing file is only an error when path
// was set explicitly.
func Load(path string) (*Config, error) {
	// .env values never override variables that are already set.
	_ = godotenv.Load()

	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("config: load env: %w", err)
	}

	for key, val := range defaults {
		if !k.Exists(key) {
			k.Set(key, val)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	switch c.Model.Mode {
	case ModeRemote, ModeSimulated, ModeOff:
	default:
		return fmt.Errorf("config: model.mode %q must be one of remote, simulated, off", c.Model.Mode)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if c.History.MaxTurns < 1 {
		return fmt.Errorf("config: history.max_turns must be at least 1, got %d", c.History.MaxTurns)
	}
	if c.Crop.Radius <= 0 || c.Crop.Radius > 1 {
		return fmt.Errorf("config: crop.radius %v must be in (0,1]", c.Crop.Radius)
	}
	if c.Confirm.ClientID != "" && c.Confirm.TokenURL == "" {
		return errors.New("config: confirm.token_url is required with confirm.client_id")
	}
	return nil
}
