package confirm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// HTTPConfig configures the HTTP confirmer.
type HTTPConfig struct {
	// BaseURL of the authority API, e.g. "https://panel-hub.local/api".
	BaseURL string

	// Token is a static bearer token. Ignored when ClientID is set.
	Token string

	// OAuth2 client credentials.
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

// HTTP confirms changes against a REST authority:
//
//	POST {base}/devices/{id}/connect   {"connected": bool}
//	PUT  {base}/settings/{id}          {"value": int}
type HTTP struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTP creates an HTTP confirmer. base carries transport timeouts and
// tracing; auth is layered on top of it.
func NewHTTP(ctx context.Context, cfg HTTPConfig, base *http.Client, logger *slog.Logger) (*HTTP, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("confirm: base URL required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("confirm: parse base URL: %w", err)
	}
	if base == nil {
		base = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := base
	authCtx := context.WithValue(ctx, oauth2.HTTPClient, base)
	switch {
	case cfg.ClientID != "":
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		client = cc.Client(authCtx)
		client.Timeout = base.Timeout
	case cfg.Token != "":
		client = oauth2.NewClient(authCtx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}))
		client.Timeout = base.Timeout
	}

	return &HTTP{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		client:  client,
		logger:  logger.With("component", "confirm.http"),
	}, nil
}

// ConfirmDevice implements Confirmer.
func (h *HTTP) ConfirmDevice(ctx context.Context, deviceID string, connected bool) error {
	path := "/devices/" + url.PathEscape(deviceID) + "/connect"
	return h.send(ctx, http.MethodPost, path, map[string]any{"connected": connected})
}

// ConfirmSetting implements Confirmer.
func (h *HTTP) ConfirmSetting(ctx context.Context, settingID string, value int) error {
	path := "/settings/" + url.PathEscape(settingID)
	return h.send(ctx, http.MethodPut, path, map[string]any{"value": value})
}

func (h *HTTP) send(ctx context.Context, method, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("confirm: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("confirm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUnreachable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		h.logger.Warn("authority rejected change",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
		)
		return &RejectedError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	return nil
}

// Verify HTTP implements Confirmer at compile time.
var _ Confirmer = (*HTTP)(nil)
