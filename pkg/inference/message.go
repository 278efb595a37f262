package inference

// ToolCall is a native function call returned by the backend.
type ToolCall struct {
	ID   string
	Name string

	// Arguments is the raw JSON object the model produced, as a string.
	Arguments string
}

// Tool is a function offered to the model through the native tools field.
// It marshals to the OpenAI wire shape.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction names a callable function and its JSON Schema parameters.
type ToolFunction struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters"`
}

// NewTool creates a function tool.
func NewTool(name, description string, parameters any) Tool {
	return Tool{Type: "function", Function: ToolFunction{Name: name, Description: description, Parameters: parameters}}
}
