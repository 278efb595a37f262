package tools

// Candidate is a tool call recovered from model output, not yet validated.
type Candidate struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
}

// Call is a validated tool invocation. It is either ToggleDevice or
// AdjustSetting.
type Call interface {
	// ToolName is the tool the call came from.
	ToolName() string
	isCall()
}

// ToggleDevice flips a device's connection state.
type ToggleDevice struct {
	Tool     string `json:"tool"`
	DeviceID string `json:"device_id"`
}

func (c ToggleDevice) ToolName() string { return c.Tool }
func (ToggleDevice) isCall()            {}

// AdjustSetting sets a setting to Value.
type AdjustSetting struct {
	Tool      string `json:"tool"`
	SettingID string `json:"setting_id"`
	Value     int    `json:"value"`
}

func (c AdjustSetting) ToolName() string { return c.Tool }
func (AdjustSetting) isCall()            {}
