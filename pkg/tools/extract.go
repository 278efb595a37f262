package tools

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/teslashibe/go-xeo/pkg/inference"
)

// Default delimiters of the Phi-4 tool-call format.
const (
	DefaultOpen  = "<|tool_call|>"
	DefaultClose = "<|/tool_call|>"
)

// Extractor pulls tool-call candidates out of free model text.
type Extractor struct {
	open   string
	close  string
	logger *slog.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithDelimiters overrides the segment delimiters.
func WithDelimiters(open, close string) ExtractorOption {
	return func(e *Extractor) {
		e.open = open
		e.close = close
	}
}

// WithLogger sets the logger used for skipped segments.
func WithLogger(l *slog.Logger) ExtractorOption {
	return func(e *Extractor) { e.logger = l }
}

// NewExtractor creates an extractor with the Phi-4 delimiters.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		open:   DefaultOpen,
		close:  DefaultClose,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "tools.extractor")
	return e
}

// Extract returns every candidate in text, in order of appearance.
//
// Delimited segments win. Only when text has no delimited segment at all is
// the whole text scanned for bare JSON (an array of calls, or an object with
// a "name" key). Malformed JSON is skipped. Extract never fails.
func (e *Extractor) Extract(text string) []Candidate {
	segments := e.segments(text)
	if len(segments) > 0 {
		var out []Candidate
		for _, seg := range segments {
			var v any
			if err := json.Unmarshal([]byte(strings.TrimSpace(seg)), &v); err != nil {
				e.logger.Warn("skipping malformed tool call segment", "error", err, "segment", truncate(seg, 120))
				continue
			}
			out = append(out, collect(v)...)
		}
		return out
	}
	return e.scan(text)
}

// Strip removes all delimited segments from text and trims the result.
func (e *Extractor) Strip(text string) string {
	var b strings.Builder
	rest := text
	for {
		i := strings.Index(rest, e.open)
		if i < 0 {
			break
		}
		j := strings.Index(rest[i+len(e.open):], e.close)
		if j < 0 {
			break
		}
		b.WriteString(rest[:i])
		rest = rest[i+len(e.open)+j+len(e.close):]
	}
	b.WriteString(rest)
	return strings.TrimSpace(b.String())
}

// segments returns the bodies of non-overlapping open/close pairs.
func (e *Extractor) segments(text string) []string {
	var out []string
	rest := text
	for {
		i := strings.Index(rest, e.open)
		if i < 0 {
			return out
		}
		rest = rest[i+len(e.open):]
		j := strings.Index(rest, e.close)
		if j < 0 {
			return out
		}
		out = append(out, rest[:j])
		rest = rest[j+len(e.close):]
	}
}

// scan walks text looking for balanced JSON arrays or objects.
func (e *Extractor) scan(text string) []Candidate {
	var out []Candidate
	for i := 0; i < len(text); i++ {
		if text[i] != '[' && text[i] != '{' {
			continue
		}
		end := matchBracket(text, i)
		if end < 0 {
			continue
		}
		var v any
		if err := json.Unmarshal([]byte(text[i:end+1]), &v); err != nil {
			continue
		}
		found := collect(v)
		if len(found) == 0 {
			continue
		}
		out = append(out, found...)
		i = end
	}
	if len(out) > 0 {
		e.logger.Debug("recovered tool calls without delimiters", "count", len(out))
	}
	return out
}

// matchBracket returns the index of the bracket closing text[start], skipping
// string literals, or -1.
func matchBracket(text string, start int) int {
	var stack []byte
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			stack = append(stack, ']')
		case '{':
			stack = append(stack, '}')
		case ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i
			}
		}
	}
	return -1
}

// collect keeps objects with a "name" key, from a single object or an array.
func collect(v any) []Candidate {
	switch t := v.(type) {
	case []any:
		var out []Candidate
		for _, el := range t {
			if m, ok := el.(map[string]any); ok {
				if c, ok := normalize(m); ok {
					out = append(out, c)
				}
			}
		}
		return out
	case map[string]any:
		if c, ok := normalize(t); ok {
			return []Candidate{c}
		}
	}
	return nil
}

// normalize renames "arguments" to "parameters" and decodes arguments that
// arrive as a JSON-encoded string. When both keys are present "arguments"
// wins.
func normalize(m map[string]any) (Candidate, bool) {
	raw, ok := m["name"]
	if !ok {
		return Candidate{}, false
	}
	name, _ := raw.(string)

	params, present := m["arguments"]
	if !present {
		params, present = m["parameters"]
	}
	c := Candidate{Name: name}
	if !present || params == nil {
		c.Parameters = map[string]any{}
		return c, true
	}
	switch p := params.(type) {
	case map[string]any:
		c.Parameters = p
	case string:
		var decoded map[string]any
		if strings.TrimSpace(p) == "" {
			c.Parameters = map[string]any{}
		} else if err := json.Unmarshal([]byte(p), &decoded); err == nil {
			c.Parameters = decoded
		}
	}
	return c, true
}

// FromNative converts OpenAI-style structured tool calls into candidates.
func FromNative(calls []inference.ToolCall) []Candidate {
	out := make([]Candidate, 0, len(calls))
	for _, tc := range calls {
		c, _ := normalize(map[string]any{"name": tc.Name, "arguments": tc.Arguments})
		out = append(out, c)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
