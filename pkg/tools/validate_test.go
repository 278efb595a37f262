package tools

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestValidateAccepts(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		name string
		in   Candidate
		want Call
	}{
		{
			name: "per-setting adjust",
			in:   Candidate{Name: "adjust_volume", Parameters: map[string]any{"value": float64(75)}},
			want: AdjustSetting{Tool: "adjust_volume", SettingID: "volume", Value: 75},
		},
		{
			name: "numeric string value",
			in:   Candidate{Name: "adjust_ipd", Parameters: map[string]any{"value": "62"}},
			want: AdjustSetting{Tool: "adjust_ipd", SettingID: "ipd", Value: 62},
		},
		{
			name: "per-device toggle",
			in:   Candidate{Name: "connect_apple_tv", Parameters: map[string]any{}},
			want: ToggleDevice{Tool: "connect_apple_tv", DeviceID: "apple-tv"},
		},
		{
			name: "generic toggle",
			in:   Candidate{Name: "connect_device", Parameters: map[string]any{"device_id": "playstation"}},
			want: ToggleDevice{Tool: "connect_device", DeviceID: "playstation"},
		},
		{
			name: "generic adjust",
			in:   Candidate{Name: "adjust_setting", Parameters: map[string]any{"setting_id": "seat", "value": float64(10)}},
			want: AdjustSetting{Tool: "adjust_setting", SettingID: "seat", Value: 10},
		},
		{
			name: "extra parameters ignored",
			in:   Candidate{Name: "adjust_magic", Parameters: map[string]any{"value": float64(0), "why": "x"}},
			want: AdjustSetting{Tool: "adjust_magic", SettingID: "magic", Value: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Validate(tt.in)
			if err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Call mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValidateRejects(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		name  string
		in    Candidate
		want  error
		param string
	}{
		{"unknown tool", Candidate{Name: "launch_rocket"}, ErrUnknownTool, ""},
		{"missing name", Candidate{}, ErrUnknownTool, ""},
		{"missing value", Candidate{Name: "adjust_volume", Parameters: map[string]any{}}, ErrMissingRequired, "value"},
		{"nil parameters", Candidate{Name: "adjust_volume"}, ErrMissingRequired, "value"},
		{"fractional value", Candidate{Name: "adjust_volume", Parameters: map[string]any{"value": 7.5}}, ErrInvalidType, "value"},
		{"bool value", Candidate{Name: "adjust_volume", Parameters: map[string]any{"value": true}}, ErrInvalidType, "value"},
		{"above max", Candidate{Name: "adjust_volume", Parameters: map[string]any{"value": float64(150)}}, ErrOutOfRange, "value"},
		{"below min", Candidate{Name: "adjust_ipd", Parameters: map[string]any{"value": float64(40)}}, ErrOutOfRange, "value"},
		{"enum miss", Candidate{Name: "connect_device", Parameters: map[string]any{"device_id": "xbox"}}, ErrNotAllowed, "device_id"},
		{"enum wrong type", Candidate{Name: "connect_device", Parameters: map[string]any{"device_id": float64(1)}}, ErrInvalidType, "device_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, err := r.Validate(tt.in)
			if call != nil {
				t.Errorf("Expected no call, got %+v", call)
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Expected *ValidationError, got %T", err)
			}
			if ve.Param != tt.param {
				t.Errorf("Expected param %q, got %q", tt.param, ve.Param)
			}
		})
	}
}

func TestValidateRuleOrder(t *testing.T) {
	r := DefaultRegistry()

	// Missing setting_id is reported before the out-of-range value.
	_, err := r.Validate(Candidate{Name: "adjust_setting", Parameters: map[string]any{"value": float64(999)}})
	if !errors.Is(err, ErrMissingRequired) {
		t.Errorf("Expected missing required first, got %v", err)
	}

	// Range is checked before enum membership.
	def := Definition{
		Name: "pick",
		Params: map[string]Param{
			"a": {Type: TypeString, Required: true, Enum: []string{"x"}},
			"b": {Type: TypeInteger, Required: true, Maximum: bound(1)},
		},
		Binding: Binding{Kind: KindAdjustSetting, TargetParam: "a", ValueParam: "b"},
	}
	custom, err := NewRegistry(def)
	if err != nil {
		t.Fatal(err)
	}
	_, err = custom.Validate(Candidate{Name: "pick", Parameters: map[string]any{"a": "nope", "b": float64(5)}})
	if !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Expected out of range before not allowed, got %v", err)
	}
}

func TestValidationErrorMessage(t *testing.T) {
	_, err := DefaultRegistry().Validate(Candidate{Name: "adjust_volume", Parameters: map[string]any{"value": float64(150)}})
	want := "tool adjust_volume: parameter value: out of range: 150 above maximum 100"
	if err == nil || err.Error() != want {
		t.Errorf("Expected %q, got %v", want, err)
	}
}

func TestParse(t *testing.T) {
	text := `<|tool_call|>[{"name":"adjust_volume","arguments":{"value":150}},` +
		`{"name":"adjust_volume","arguments":{"value":75}},{"name":"self_destruct"}]<|/tool_call|>`

	calls, errs := Parse(newTestExtractor(), DefaultRegistry(), text)
	if len(calls) != 1 {
		t.Fatalf("Expected 1 accepted call, got %d", len(calls))
	}
	if calls[0] != (AdjustSetting{Tool: "adjust_volume", SettingID: "volume", Value: 75}) {
		t.Errorf("Unexpected call %+v", calls[0])
	}
	if len(errs) != 2 || !errors.Is(errs[0], ErrOutOfRange) || !errors.Is(errs[1], ErrUnknownTool) {
		t.Errorf("Unexpected rejections %v", errs)
	}
}
