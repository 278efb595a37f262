package prompt

import (
	"strings"
	"testing"
)

func TestChatRender(t *testing.T) {
	got := New("").Chat("  turn up the volume ").Render()
	want := "<|user|>turn up the volume<|end|><|assistant|>"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestWithToolsEmbedsCatalog(t *testing.T) {
	a := New(`[{"name":"adjust_volume"}]`)
	p := a.WithTools(a.Chat("louder"))

	if !strings.Contains(p.System, "<|tool|>\n[{\"name\":\"adjust_volume\"}]\n<|/tool|>") {
		t.Errorf("Expected catalog between tool markers, got %q", p.System)
	}
	if !strings.Contains(p.System, `<|tool_call|>[{"name": "function_name", "arguments": {...}}]<|/tool_call|>`) {
		t.Errorf("Expected call-format rule, got %q", p.System)
	}

	r := p.Render()
	if !strings.HasPrefix(r, "<|system|>") || !strings.HasSuffix(r, "<|user|>louder<|end|><|assistant|>") {
		t.Errorf("Unexpected render %q", r)
	}
}

func TestAnalyzeUIReferencesImage(t *testing.T) {
	r := New("").AnalyzeUI().Render()
	if !strings.HasPrefix(r, "<|user|><|image_1|>") {
		t.Errorf("Expected image token after user token, got %q", r)
	}
}

func TestIntent(t *testing.T) {
	conf := 0.875
	p := New("").Intent(IntentContext{
		UIAnalysis: "A settings page",
		Gesture:    "pinch",
		Confidence: &conf,
		Gaze:       &Gaze{X: 0.5, Y: 0.25},
	})

	for _, want := range []string{
		"Current interface: A settings page",
		"User gesture: pinch",
		"Gesture confidence: 0.88",
		"- X: 0.50",
		"- Y: 0.25",
	} {
		if !strings.Contains(p.User, want) {
			t.Errorf("Expected %q in intent prompt:\n%s", want, p.User)
		}
	}
	if !p.Image {
		t.Error("Expected intent prompt to reference the image")
	}
}

func TestIntentOmitsOptionalFields(t *testing.T) {
	p := New("").Intent(IntentContext{Gesture: "thumb up"})
	if strings.Contains(p.User, "confidence") || strings.Contains(p.User, "gaze") || strings.Contains(p.User, "Current interface") {
		t.Errorf("Expected optional sections omitted, got:\n%s", p.User)
	}
	if !strings.Contains(p.User, "From the interface and the gesture") {
		t.Errorf("Expected closing instruction without gaze, got:\n%s", p.User)
	}
}

func TestIntentNote(t *testing.T) {
	p := New("").Intent(IntentContext{
		Gesture: "tap",
		Gaze:    &Gaze{X: 0.5, Y: 0.5},
		Note:    "Gaze region: [1, 2, 3, 4]",
	})
	if !strings.Contains(p.User, "\nGaze region: [1, 2, 3, 4]\n") {
		t.Errorf("Expected note in prompt, got:\n%s", p.User)
	}
	if !strings.Contains(p.User, "the gesture and the gaze position") {
		t.Errorf("Expected closing instruction with gaze, got:\n%s", p.User)
	}
}
