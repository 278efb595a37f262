package inference

import (
	"context"
	"strings"
	"time"
)

// Canned simulator replies.
const (
	SimulatedUIAnalysis = "This is the XEO virtual reality panel. It shows device connection cards " +
		"(About XEO, Apple TV, Play Station 5, Nintendo Switch) and sliders for volume, IPD, magic, seat and ventilation."
	SimulatedGestureHint = "Based on the gesture, the user probably wants to adjust a setting or connect a device."
	SimulatedDefault     = "I understand. Tell me which device to connect or which setting to adjust."
)

// Simulator is a deterministic Model for running the panel without a GPU
// host. Tool-mode replies embed a delimited tool call like the real model.
type Simulator struct {
	latency    time.Duration
	open, shut string
}

// NewSimulator creates a simulator that waits latency before answering.
func NewSimulator(latency time.Duration) *Simulator {
	return &Simulator{latency: latency, open: "<|tool_call|>", shut: "<|/tool_call|>"}
}

// Name implements Model.
func (s *Simulator) Name() string {
	return "simulator"
}

// Generate implements Model.
func (s *Simulator) Generate(ctx context.Context, req *GenerateRequest) (*Generation, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	start := time.Now()
	if s.latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.latency):
		}
	}

	text := s.reply(req)
	return &Generation{
		Text:    text,
		Elapsed: time.Since(start),
		Model:   s.Name(),
	}, nil
}

func (s *Simulator) reply(req *GenerateRequest) string {
	lower := strings.ToLower(req.Prompt)
	switch {
	case req.Image != nil && req.ToolMode:
		return s.call(`[{"name":"connect_device","arguments":{"device_id":"apple-tv"}}]`) +
			"\nI can connect the Apple TV for you."
	case req.Image != nil:
		return SimulatedUIAnalysis
	case strings.Contains(lower, "gesture") && req.ToolMode:
		return s.call(`[{"name":"adjust_setting","arguments":{"setting_id":"volume","value":80}}]`) +
			"\nI set the volume to 80%."
	case strings.Contains(lower, "gesture"):
		return SimulatedGestureHint
	default:
		return SimulatedDefault
	}
}

func (s *Simulator) call(body string) string {
	return s.open + body + s.shut
}

// Verify Simulator implements Model at compile time.
var _ Model = (*Simulator)(nil)
