// Package inference invokes the vision-language model behind the panel.
//
// The model is an external collaborator: a Phi-4 multimodal deployment
// behind an OpenAI-compatible endpoint (vLLM, Ollama, llama.cpp server),
// or the in-process Simulator when no GPU host is available.
//
// Example usage:
//
//	client, _ := inference.NewClient(
//	    inference.WithBaseURL("http://gpu-host:8000/v1"),
//	    inference.WithModel("microsoft/Phi-4-multimodal-instruct"),
//	)
//	defer client.Close()
//
//	gen, _ := client.Generate(ctx, &inference.GenerateRequest{
//	    Prompt:   "Describe this screen.",
//	    Image:    screenshot,
//	    ToolMode: false,
//	})
package inference

import (
	"context"
	"image"
	"time"
)

// Model generates text from a prompt and an optional image.
type Model interface {
	// Generate runs one completion. It blocks until the model answers or
	// ctx is done.
	Generate(ctx context.Context, req *GenerateRequest) (*Generation, error)

	// Name identifies the model for logs and metrics.
	Name() string
}

// HealthChecker is implemented by models that can check their backend.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// GenerateRequest is one model invocation.
type GenerateRequest struct {
	// System is the system preamble. In tool mode it carries the catalog.
	System string

	// Prompt is the user turn.
	Prompt string

	// Image is attached as the first image of the user turn.
	Image image.Image

	// MaxTokens limits the response length. Zero uses the model default.
	MaxTokens int

	// ToolMode asks the backend to keep tool-call special tokens in the
	// decoded text so they can be extracted.
	ToolMode bool

	// Tools are offered as native function tools when non-empty.
	Tools []Tool
}

// Generation is the model's answer.
type Generation struct {
	// Text is the decoded completion.
	Text string

	// ToolCalls are native structured tool calls, if the backend used them.
	ToolCalls []ToolCall

	// Elapsed is the wall time of the invocation.
	Elapsed time.Duration

	// Usage tracks token consumption.
	Usage Usage

	// Model that produced the answer.
	Model string
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
