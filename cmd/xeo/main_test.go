package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPromptCommand(t *testing.T) {
	out, err := execute(t, "", "prompt", "chat", "turn the volume up")
	if err != nil {
		t.Fatalf("prompt: %v", err)
	}
	if !strings.Contains(out, "<|user|>turn the volume up<|end|><|assistant|>") {
		t.Errorf("Expected rendered chat turn, got %q", out)
	}
	if !strings.Contains(out, "adjust_volume") {
		t.Error("Expected tool catalog in chat prompt")
	}

	out, err = execute(t, "", "prompt", "analyze")
	if err != nil {
		t.Fatalf("prompt analyze: %v", err)
	}
	if !strings.Contains(out, "<|image_1|>") {
		t.Errorf("Expected image token, got %q", out)
	}

	if _, err := execute(t, "", "prompt", "poem"); err == nil {
		t.Error("Expected error for unknown prompt kind")
	}
}

func TestParseCommandApply(t *testing.T) {
	input := `Sure. <|tool_call|>[{"name":"adjust_volume","arguments":{"value":75}},` +
		`{"name":"launch_rocket","parameters":{}}]<|/tool_call|>`

	out, err := execute(t, input, "parse", "--apply", "--log-level", "error")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	var got struct {
		Calls    []map[string]any `json:"calls"`
		Rejected []string         `json:"rejected"`
		Text     string           `json:"text"`
		Results  []struct {
			Success bool `json:"success"`
		} `json:"results"`
		Settings []struct {
			ID    string `json:"id"`
			Value int    `json:"value"`
		} `json:"settings"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if len(got.Calls) != 1 || len(got.Rejected) != 1 {
		t.Fatalf("Expected 1 call and 1 rejection, got %d and %d", len(got.Calls), len(got.Rejected))
	}
	if got.Text != "Sure." {
		t.Errorf("Expected stripped text %q, got %q", "Sure.", got.Text)
	}
	if len(got.Results) != 1 || !got.Results[0].Success {
		t.Errorf("Expected one successful result, got %+v", got.Results)
	}
	for _, s := range got.Settings {
		if s.ID == "volume" && s.Value != 75 {
			t.Errorf("Expected volume 75 after apply, got %d", s.Value)
		}
	}
}

func TestParseCommandEmptyInput(t *testing.T) {
	if _, err := execute(t, "  \n", "parse", "--log-level", "error"); err == nil {
		t.Error("Expected error for empty input")
	}
}

func TestCropCommand(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "screen.png")
	img := image.NewRGBA(image.Rect(0, 0, 800, 600))
	img.Set(400, 300, color.White)
	f, err := os.Create(src)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()

	dst := filepath.Join(dir, "out.png")
	out, err := execute(t, "", "crop", src, "-x", "0.5", "-y", "0.5", "-r", "0.1", "-o", dst, "--log-level", "error")
	if err != nil {
		t.Fatalf("crop: %v", err)
	}
	if !strings.Contains(out, "box=[340 240 460 360]") {
		t.Errorf("Expected crop box in output, got %q", out)
	}

	f, err = os.Open(dst)
	if err != nil {
		t.Fatalf("open crop: %v", err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode crop: %v", err)
	}
	if cfg.Width != 120 || cfg.Height != 120 {
		t.Errorf("Expected 120x120 crop, got %dx%d", cfg.Width, cfg.Height)
	}
}
