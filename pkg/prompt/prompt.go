// Package prompt assembles Phi-4 multimodal prompts for the panel.
package prompt

import (
	"fmt"
	"strings"
)

// Phi-4 chat tokens.
const (
	TokenSystem    = "<|system|>"
	TokenUser      = "<|user|>"
	TokenAssistant = "<|assistant|>"
	TokenEnd       = "<|end|>"
	TokenImage     = "<|image_1|>"
	TokenTool      = "<|tool|>"
	TokenToolEnd   = "<|/tool|>"
	TokenCall      = "<|tool_call|>"
	TokenCallEnd   = "<|/tool_call|>"
)

// Prompt is a single-turn prompt split into system and user parts.
type Prompt struct {
	System string
	User   string

	// Image reports whether the user turn references <|image_1|>.
	Image bool
}

// Render returns the raw Phi-4 token form of p, ending with the assistant
// token so the model continues from there.
func (p Prompt) Render() string {
	var b strings.Builder
	if p.System != "" {
		b.WriteString(TokenSystem)
		b.WriteString(p.System)
		b.WriteString(TokenEnd)
		b.WriteByte('\n')
	}
	b.WriteString(TokenUser)
	if p.Image {
		b.WriteString(TokenImage)
	}
	b.WriteString(p.User)
	b.WriteString(TokenEnd)
	b.WriteString(TokenAssistant)
	return b.String()
}

// Assembler builds the panel's prompts. The zero value has no tool catalog.
type Assembler struct {
	// Catalog is the JSON tool catalog embedded in tool-mode prompts.
	Catalog string
}

// New creates an assembler with the given tool catalog JSON.
func New(catalog string) *Assembler {
	return &Assembler{Catalog: catalog}
}

// ToolSystem is the tool-mode system preamble: the catalog between
// <|tool|> markers and the call-format rules.
func (a *Assembler) ToolSystem() string {
	var b strings.Builder
	b.WriteString("You are the XEO virtual reality assistant with tool calling. ")
	b.WriteString("You control device connections and adjust settings. Reply with tool calls only when an action is needed.\n\n")
	b.WriteString("Available functions: ")
	b.WriteString(TokenTool)
	b.WriteByte('\n')
	b.WriteString(a.Catalog)
	b.WriteByte('\n')
	b.WriteString(TokenToolEnd)
	b.WriteString("\n\nFunction call rules:\n")
	fmt.Fprintf(&b, "1. Every call must be written as %s[{\"name\": \"function_name\", \"arguments\": {...}}]%s\n", TokenCall, TokenCallEnd)
	b.WriteString("2. Follow the JSON schema exactly. Do not invent parameters or values.\n")
	b.WriteString("3. Pick the function that matches the user's intent.")
	return b.String()
}

// WithTools returns p with the tool-mode system preamble. An existing
// system part is kept after the preamble.
func (a *Assembler) WithTools(p Prompt) Prompt {
	sys := a.ToolSystem()
	if p.System != "" {
		sys += "\n\n" + p.System
	}
	p.System = sys
	return p
}

// Chat wraps a user utterance.
func (a *Assembler) Chat(utterance string) Prompt {
	return Prompt{User: strings.TrimSpace(utterance)}
}

// AnalyzeUI asks for a description of the screenshot.
func (a *Assembler) AnalyzeUI() Prompt {
	return Prompt{
		Image: true,
		User: "\nAnalyze the interface:\n" +
			"Describe the purpose of the current page, its main UI elements and the likely interactions.",
	}
}

// Gaze is a normalized gaze point in [0,1]x[0,1].
type Gaze struct {
	X float64
	Y float64
}

// IntentContext is the free-form context of an intent prompt.
type IntentContext struct {
	UIAnalysis string
	Gesture    string

	// Confidence of the gesture classifier in [0,1]. Omitted when nil.
	Confidence *float64

	// Gaze is omitted when nil.
	Gaze *Gaze

	// Note is appended verbatim, e.g. the pixel region around the gaze.
	Note string
}

// Intent asks the model to infer and act on the user's intent.
func (a *Assembler) Intent(ic IntentContext) Prompt {
	var b strings.Builder
	b.WriteByte('\n')
	if ic.UIAnalysis != "" {
		fmt.Fprintf(&b, "Current interface: %s\n\n", ic.UIAnalysis)
	}
	fmt.Fprintf(&b, "User gesture: %s\n", ic.Gesture)
	if ic.Confidence != nil {
		fmt.Fprintf(&b, "Gesture confidence: %.2f\n", *ic.Confidence)
	}
	if ic.Gaze != nil {
		b.WriteString("\nUser gaze position:\n")
		fmt.Fprintf(&b, "- X: %.2f (0 is the left edge, 1 is the right edge)\n", ic.Gaze.X)
		fmt.Fprintf(&b, "- Y: %.2f (0 is the top edge, 1 is the bottom edge)\n", ic.Gaze.Y)
	}
	if ic.Note != "" {
		b.WriteByte('\n')
		b.WriteString(ic.Note)
		b.WriteByte('\n')
	}
	if ic.Gaze != nil {
		b.WriteString("\nFrom the interface, the gesture and the gaze position, infer what the user wants to do and call the matching tool.")
	} else {
		b.WriteString("\nFrom the interface and the gesture, infer what the user wants to do and call the matching tool.")
	}
	return Prompt{Image: true, User: b.String()}
}
