package tools

import (
	"fmt"
	"strings"

	"github.com/teslashibe/go-xeo/pkg/state"
)

// Generic tool names exposed to the model alongside the per-id tools.
const (
	ConnectDeviceTool = "connect_device"
	AdjustSettingTool = "adjust_setting"
)

var settingDescriptions = map[string]string{
	"volume":      "Adjust the audio volume",
	"ipd":         "Adjust the interpupillary distance of the headset optics",
	"magic":       "Adjust the magic effect intensity",
	"seat":        "Adjust the seat position",
	"ventilation": "Adjust the ventilation strength",
}

// ConnectToolName returns the per-device tool name, e.g. apple-tv -> connect_apple_tv.
func ConnectToolName(deviceID string) string {
	return "connect_" + strings.ReplaceAll(deviceID, "-", "_")
}

// AdjustToolName returns the per-setting tool name, e.g. volume -> adjust_volume.
func AdjustToolName(settingID string) string {
	return "adjust_" + strings.ReplaceAll(settingID, "-", "_")
}

func bound(v int) *float64 {
	f := float64(v)
	return &f
}

// Catalog builds the tool definitions for the given devices and settings:
// one connect_<device> per device, one adjust_<setting> per setting, then
// the generic connect_device and adjust_setting.
func Catalog(devices []state.Device, settings []state.Setting) []Definition {
	defs := make([]Definition, 0, len(devices)+len(settings)+2)

	deviceIDs := make([]string, 0, len(devices))
	for _, d := range devices {
		deviceIDs = append(deviceIDs, d.ID)
		defs = append(defs, Definition{
			Name:        ConnectToolName(d.ID),
			Description: fmt.Sprintf("Connect or disconnect %s", d.Name),
			Params:      map[string]Param{},
			Binding:     Binding{Kind: KindToggleDevice, Target: d.ID},
		})
	}

	settingIDs := make([]string, 0, len(settings))
	for _, s := range settings {
		settingIDs = append(settingIDs, s.ID)
		desc := settingDescriptions[s.ID]
		if desc == "" {
			desc = "Adjust " + s.ID
		}
		defs = append(defs, Definition{
			Name:        AdjustToolName(s.ID),
			Description: fmt.Sprintf("%s (%d-%d%s)", desc, s.Min, s.Max, s.Unit),
			Params: map[string]Param{
				"value": {
					Type:        TypeInteger,
					Description: fmt.Sprintf("New %s value", s.ID),
					Required:    true,
					Minimum:     bound(s.Min),
					Maximum:     bound(s.Max),
				},
			},
			Binding: Binding{Kind: KindAdjustSetting, Target: s.ID, ValueParam: "value"},
		})
	}

	defs = append(defs,
		Definition{
			Name:        ConnectDeviceTool,
			Description: "Connect or disconnect a device by id",
			Params: map[string]Param{
				"device_id": {
					Type:        TypeString,
					Description: "Device to toggle",
					Required:    true,
					Enum:        deviceIDs,
				},
			},
			Binding: Binding{Kind: KindToggleDevice, TargetParam: "device_id"},
		},
		Definition{
			Name:        AdjustSettingTool,
			Description: "Adjust a setting by id to a new value",
			Params: map[string]Param{
				"setting_id": {
					Type:        TypeString,
					Description: "Setting to adjust",
					Required:    true,
					Enum:        settingIDs,
				},
				"value": {
					Type:        TypeInteger,
					Description: "New value within the setting's range",
					Required:    true,
				},
			},
			Binding: Binding{Kind: KindAdjustSetting, TargetParam: "setting_id", ValueParam: "value"},
		},
	)
	return defs
}

// DefaultRegistry is the registry for the factory device and setting set.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Catalog(state.DefaultDevices(), state.DefaultSettings())...)
	if err != nil {
		panic(err) // unreachable: factory ids are unique
	}
	return r
}
