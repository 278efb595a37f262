package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client is the HTTP model backend. It speaks the OpenAI-compatible
// /chat/completions API that vLLM and similar servers expose for Phi-4.
type Client struct {
	baseURL string
	apiKey  string
	config  *Config
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a model client.
func NewClient(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		config:  cfg,
		http:    hc,
		logger:  cfg.Logger.With("component", "inference.client"),
	}, nil
}

// Name implements Model.
func (c *Client) Name() string {
	return c.config.Model
}

// Generate implements Model.
func (c *Client) Generate(ctx context.Context, req *GenerateRequest) (*Generation, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	start := time.Now()

	body, err := c.chatRequest(req)
	if err != nil {
		return nil, err
	}
	raw, err := c.do(ctx, http.MethodPost, "/chat/completions", body)
	if err != nil {
		return nil, err
	}

	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("inference: decode response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}
	msg := resp.Choices[0].Message

	gen := &Generation{
		Text:    msg.Content,
		Elapsed: time.Since(start),
		Usage:   resp.Usage,
		Model:   resp.Model,
	}
	for _, tc := range msg.ToolCalls {
		gen.ToolCalls = append(gen.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}
	c.logger.Debug("generation complete", "elapsed", gen.Elapsed, "tool_mode", req.ToolMode,
		"completion_tokens", resp.Usage.CompletionTokens, "native_calls", len(gen.ToolCalls))
	return gen, nil
}

// Health implements HealthChecker by listing the served models.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/models", nil)
	return err
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) chatRequest(req *GenerateRequest) ([]byte, error) {
	body := chatRequest{
		Model:       c.config.Model,
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
		Tools:       req.Tools,
	}
	if req.MaxTokens > 0 {
		body.MaxTokens = req.MaxTokens
	}
	if req.ToolMode {
		keep := false
		body.SkipSpecialTokens = &keep
	}

	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	user := chatMessage{Role: "user", Content: req.Prompt}
	if req.Image != nil {
		url, err := imageDataURL(req.Image)
		if err != nil {
			return nil, fmt.Errorf("inference: encode image: %w", err)
		}
		user.Content = []contentPart{
			{Type: "image_url", ImageURL: &imageURL{URL: url}},
			{Type: "text", Text: req.Prompt},
		}
	}
	body.Messages = append(body.Messages, user)

	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("inference: marshal request: %w", err)
	}
	return b, nil
}

// do sends one API call and returns the 200 response body. Transport
// failures and retryable API errors are retried up to MaxRetries times
// with a linearly growing delay.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			}
		}

		raw, err := c.once(ctx, method, path, body)
		if err == nil {
			return raw, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if apiErr, ok := err.(*APIError); ok && !apiErr.Retryable() {
			return nil, err
		}
		lastErr = err
		c.logger.Warn("model request failed", "path", path, "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

func (c *Client) once(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("inference: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("inference: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp.StatusCode, raw)
	}
	return raw, nil
}

func apiError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
	var er errorResponse
	if json.Unmarshal(body, &er) == nil && er.Error.Message != "" {
		e.Message = er.Error.Message
		e.Code = er.Error.Code
	}
	return e
}

// Verify Client implements Model at compile time.
var (
	_ Model         = (*Client)(nil)
	_ HealthChecker = (*Client)(nil)
)
