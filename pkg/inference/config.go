package inference

import (
	"log/slog"
	"net/http"
	"time"
)

// Config holds model client configuration.
type Config struct {
	// Connection
	BaseURL string // API base URL
	APIKey  string // optional for local servers

	// Model name sent with each request
	Model string

	// Request defaults
	MaxTokens   int
	Temperature float64

	// Timeout bounds a single HTTP attempt. Zero leaves it to the context.
	Timeout time.Duration

	// Retry configuration
	MaxRetries int
	RetryDelay time.Duration

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring the client.
type Option func(*Config)

// WithBaseURL sets the API base URL, e.g. "http://localhost:8000/v1".
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithMaxTokens sets the default max tokens.
func WithMaxTokens(n int) Option {
	return func(c *Config) { c.MaxTokens = n }
}

// WithTemperature sets the default temperature.
func WithTemperature(t float64) Option {
	return func(c *Config) { c.Temperature = t }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithRetry configures retry behavior.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Config) { c.HTTPClient = hc }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns defaults for a local Phi-4 multimodal server.
// Temperature 0 keeps decoding greedy.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "http://localhost:8000/v1",
		Model:      "microsoft/Phi-4-multimodal-instruct",
		MaxTokens:  500,
		Timeout:    120 * time.Second,
		MaxRetries: 1,
		RetryDelay: 250 * time.Millisecond,
		Logger:     slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoBaseURL
	}
	if c.Model == "" {
		return ErrNoModel
	}
	return nil
}
