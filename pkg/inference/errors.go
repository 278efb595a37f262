package inference

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNoBaseURL   = errors.New("inference: base URL required")
	ErrNoModel     = errors.New("inference: model required")
	ErrEmptyPrompt = errors.New("inference: empty prompt")

	// ErrNoChoices is returned when the endpoint answers 200 without a completion.
	ErrNoChoices = errors.New("inference: no choices returned")

	// ErrModelUnavailable is returned when no model is configured.
	ErrModelUnavailable = errors.New("inference: model unavailable")

	// ErrAllModelsFailed is matched by every *ChainError.
	ErrAllModelsFailed = errors.New("inference: all models failed")
)

// APIError is a non-2xx answer from the completion endpoint.
type APIError struct {
	StatusCode int
	Message    string

	// Code is the OpenAI-style error code, e.g. "invalid_api_key".
	Code string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("inference: status %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("inference: status %d: %s", e.StatusCode, e.Message)
}

// Retryable reports rate limiting and server-side failures.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Unauthorized reports a missing, invalid or underprivileged API key.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Failure is one model's error inside a chain.
type Failure struct {
	Model string
	Err   error
}

// ChainError lists why every model of a Chain failed, in chain order.
type ChainError struct {
	Failures []Failure
}

func (e *ChainError) Error() string {
	if len(e.Failures) == 0 {
		return ErrAllModelsFailed.Error()
	}
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s: %v", f.Model, f.Err)
	}
	return fmt.Sprintf("%v: %s", ErrAllModelsFailed, strings.Join(parts, "; "))
}

// Unwrap exposes ErrAllModelsFailed and every model error to errors.Is and
// errors.As.
func (e *ChainError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures)+1)
	out = append(out, ErrAllModelsFailed)
	for _, f := range e.Failures {
		out = append(out, f.Err)
	}
	return out
}
