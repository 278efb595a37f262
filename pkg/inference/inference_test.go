package inference

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"
	"time"
)

func TestMockModel(t *testing.T) {
	ctx := context.Background()
	mock := NewMock("Mock response")

	gen, err := mock.Generate(ctx, &GenerateRequest{Prompt: "Hello"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if gen.Text != "Mock response" {
		t.Errorf("Expected mock text, got %s", gen.Text)
	}

	if mock.CallCount("Generate") != 1 {
		t.Errorf("Expected 1 Generate call, got %d", mock.CallCount("Generate"))
	}
	if last := mock.LastCall(); last == nil || last.Request.Prompt != "Hello" {
		t.Errorf("Expected last call to record the request, got %+v", last)
	}

	mock.Reset()
	if len(mock.Calls()) != 0 {
		t.Error("Expected 0 calls after reset")
	}
}

func TestMockWithError(t *testing.T) {
	testErr := errors.New("test error")
	mock := WithError(testErr)

	if _, err := mock.Generate(context.Background(), &GenerateRequest{}); !errors.Is(err, testErr) {
		t.Errorf("Expected test error, got: %v", err)
	}
	if err := mock.Health(context.Background()); !errors.Is(err, testErr) {
		t.Errorf("Expected test error, got: %v", err)
	}
}

func TestFunctionalOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Apply(
		WithBaseURL("http://localhost:11434/v1"),
		WithAPIKey("test-key"),
		WithModel("phi4-mm"),
		WithMaxTokens(100),
		WithTemperature(0.2),
		WithTimeout(10*time.Second),
		WithRetry(5, 50*time.Millisecond),
	)

	if cfg.BaseURL != "http://localhost:11434/v1" {
		t.Errorf("Expected custom base URL, got %s", cfg.BaseURL)
	}
	if cfg.Model != "phi4-mm" {
		t.Errorf("Expected phi4-mm, got %s", cfg.Model)
	}
	if cfg.MaxTokens != 100 || cfg.Temperature != 0.2 {
		t.Errorf("Unexpected decoding config %d/%v", cfg.MaxTokens, cfg.Temperature)
	}
	if cfg.MaxRetries != 5 || cfg.RetryDelay != 50*time.Millisecond {
		t.Errorf("Unexpected retry config %d/%v", cfg.MaxRetries, cfg.RetryDelay)
	}
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{429, true},
		{500, true},
		{503, true},
		{400, false},
		{401, false},
	}
	for _, tt := range tests {
		err := &APIError{StatusCode: tt.status, Message: "x"}
		if err.Retryable() != tt.retryable {
			t.Errorf("Status %d: expected retryable=%v", tt.status, tt.retryable)
		}
	}

	err := &APIError{StatusCode: 400, Message: "bad", Code: "invalid"}
	if !strings.Contains(err.Error(), "(invalid)") {
		t.Errorf("Expected code in message, got %s", err.Error())
	}
}

func TestSimulatorReplies(t *testing.T) {
	sim := NewSimulator(0)
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	ctx := context.Background()

	tests := []struct {
		name     string
		req      *GenerateRequest
		contains string
	}{
		{"ui analysis", &GenerateRequest{Prompt: "Describe", Image: img}, "XEO virtual reality panel"},
		{"image tool mode", &GenerateRequest{Prompt: "Intent", Image: img, ToolMode: true}, `"device_id":"apple-tv"`},
		{"gesture tool mode", &GenerateRequest{Prompt: "User gesture: pinch", ToolMode: true}, `"setting_id":"volume","value":80`},
		{"gesture", &GenerateRequest{Prompt: "User gesture: pinch"}, "gesture"},
		{"default", &GenerateRequest{Prompt: "hello"}, "Tell me which device"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen, err := sim.Generate(ctx, tt.req)
			if err != nil {
				t.Fatalf("Generate failed: %v", err)
			}
			if !strings.Contains(gen.Text, tt.contains) {
				t.Errorf("Expected %q in %q", tt.contains, gen.Text)
			}
		})
	}
}

func TestSimulatorHonorsContext(t *testing.T) {
	sim := NewSimulator(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := sim.Generate(ctx, &GenerateRequest{Prompt: "hi"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestJPEGDataURL(t *testing.T) {
	url, err := imageDataURL(image.NewRGBA(image.Rect(0, 0, 2, 2)))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(url, "data:image/jpeg;base64,/9j/") {
		t.Errorf("Expected JPEG data URL, got %.40s", url)
	}
}
