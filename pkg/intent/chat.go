package intent

import (
	"context"
	"errors"
	"strings"

	"github.com/teslashibe/go-xeo/internal/telemetry"
	"github.com/teslashibe/go-xeo/pkg/dispatch"
	"github.com/teslashibe/go-xeo/pkg/history"
	"github.com/teslashibe/go-xeo/pkg/hub"
	"github.com/teslashibe/go-xeo/pkg/inference"
	"github.com/teslashibe/go-xeo/pkg/metrics"
)

// ErrEmptyMessage is returned by Chat for a blank message.
var ErrEmptyMessage = errors.New("message is required")

// Canned replies used when no model is configured.
const (
	GreetingReply = "Hello! I am the XEO assistant. I can connect devices or adjust settings. " +
		"For example, say 'connect Apple TV' or 'set the volume to 75%'."
	HelpReply = "I can control XEO devices and settings:\n" +
		"1. Connect or disconnect devices: About XEO, Apple TV, PlayStation 5, Nintendo Switch\n" +
		"2. Adjust settings: volume (0-100%), IPD (50-80mm), Magic Pulse intensity (0-100%), " +
		"seat position (0-100), ventilation (0-100%)"
	UnsureReply = "Sorry, I'm not sure what you want to do. Try connecting a device (like 'connect Apple TV') " +
		"or adjusting a setting (like 'set the volume to 80%')."
)

// ChatResponse is the outcome of one chat turn.
type ChatResponse struct {
	Message     string            `json:"message"`
	ToolsCalled []string          `json:"tools_called"`
	Results     []dispatch.Result `json:"results,omitempty"`
	Rejected    []string          `json:"rejected,omitempty"`
	Keywords    Keywords          `json:"keywords"`
	Model       string            `json:"model,omitempty"`
}

// Chat runs one conversation turn: the message goes to the model in tool
// mode, every valid tool call is dispatched and the reply, stripped of
// tool-call segments, is returned. Model failures become the reply text;
// only a blank message is an error.
func (p *Processor) Chat(ctx context.Context, message string) (*ChatResponse, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	ctx, span := telemetry.Tracer("intent").Start(ctx, "chat")
	defer span.End()

	resp := &ChatResponse{
		ToolsCalled: []string{},
		Keywords:    AnalyzeKeywords(message),
	}

	if p.model == nil {
		resp.Message = FallbackReply(message)
	} else {
		resp.Model = p.model.Name()
		p.chatWithTools(ctx, message, resp)
	}

	p.history.AddTurn(message, resp.Message)
	p.publish(hub.EventChat, map[string]any{
		"message":      message,
		"reply":        resp.Message,
		"tools_called": resp.ToolsCalled,
	})
	return resp, nil
}

func (p *Processor) chatWithTools(ctx context.Context, message string, resp *ChatResponse) {
	pr := p.assembler.WithTools(p.assembler.Chat(message))
	gen, err := p.generate(ctx, "chat", &inference.GenerateRequest{
		System:    pr.System,
		Prompt:    pr.User,
		MaxTokens: p.limits.Chat,
		ToolMode:  true,
		Tools:     p.catalogTools,
	})
	if err != nil {
		resp.Message = "Error processing your request: " + err.Error()
		return
	}

	for _, c := range p.candidates(gen) {
		call, err := p.registry.Validate(c)
		if err != nil {
			p.metrics.ToolCall(c.Name, metrics.OutcomeRejected)
			p.logger.Info("tool call rejected", "tool", c.Name, "error", err)
			resp.Rejected = append(resp.Rejected, err.Error())
			continue
		}
		resp.ToolsCalled = append(resp.ToolsCalled, call.ToolName())
		resp.Results = append(resp.Results, p.dispatcher.Dispatch(ctx, call))
	}

	resp.Message = p.extractor.Strip(gen.Text)
	if resp.Message == "" {
		resp.Message = summarize(resp.Results)
	}
}

func summarize(results []dispatch.Result) string {
	msgs := make([]string, 0, len(results))
	for _, r := range results {
		msgs = append(msgs, r.Message)
	}
	if len(msgs) == 0 {
		return UnsureReply
	}
	return strings.Join(msgs, "; ")
}

// FallbackReply answers msg without a model.
func FallbackReply(msg string) string {
	lower := strings.ToLower(msg)
	words := make(map[string]bool)
	for _, w := range wordPattern.FindAllString(lower, -1) {
		words[w] = true
	}
	switch {
	case words["hi"] || words["hello"] || words["hey"] ||
		strings.Contains(msg, "你好") || strings.Contains(msg, "您好"):
		return GreetingReply
	case words["help"] || strings.Contains(lower, "what can you do") ||
		strings.Contains(msg, "功能") || strings.Contains(msg, "能做什么"):
		return HelpReply
	default:
		return UnsureReply
	}
}

// Transcript returns the chat history.
func (p *Processor) Transcript() []history.Entry {
	return p.history.Entries()
}
