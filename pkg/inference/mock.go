package inference

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Mock implements Model for testing.
type Mock struct {
	// GenerateFunc is called when Generate is invoked.
	GenerateFunc func(ctx context.Context, req *GenerateRequest) (*Generation, error)

	// HealthFunc is called when Health is invoked.
	HealthFunc func(ctx context.Context) error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation.
type MockCall struct {
	Method  string
	Request *GenerateRequest
	Time    time.Time
}

// NewMock creates a mock that answers every request with text.
func NewMock(text string) *Mock {
	return &Mock{
		GenerateFunc: func(ctx context.Context, req *GenerateRequest) (*Generation, error) {
			return &Generation{
				Text:  text,
				Usage: Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
				Model: "mock",
			}, nil
		},
	}
}

// Name implements Model.
func (m *Mock) Name() string {
	return "mock"
}

// Generate calls GenerateFunc and records the call.
func (m *Mock) Generate(ctx context.Context, req *GenerateRequest) (*Generation, error) {
	m.record("Generate", req)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return nil, fmt.Errorf("mock: %w", ErrModelUnavailable)
}

// Health calls HealthFunc and records the call.
func (m *Mock) Health(ctx context.Context) error {
	m.record("Health", nil)
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

func (m *Mock) record(method string, req *GenerateRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{
		Method:  method,
		Request: req,
		Time:    time.Now(),
	})
}

// Calls returns all recorded method calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// LastCall returns the most recent call, or nil if none.
func (m *Mock) LastCall() *MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	call := m.calls[len(m.calls)-1]
	return &call
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// WithError returns a mock that always returns the given error.
func WithError(err error) *Mock {
	return &Mock{
		GenerateFunc: func(ctx context.Context, req *GenerateRequest) (*Generation, error) {
			return nil, err
		},
		HealthFunc: func(ctx context.Context) error {
			return err
		},
	}
}

// Verify Mock implements Model at compile time.
var (
	_ Model         = (*Mock)(nil)
	_ HealthChecker = (*Mock)(nil)
)
