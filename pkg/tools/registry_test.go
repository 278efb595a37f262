package tools

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	want := []string{
		"connect_about_xeo", "connect_apple_tv", "connect_playstation", "connect_nintendo",
		"adjust_volume", "adjust_ipd", "adjust_magic", "adjust_seat", "adjust_ventilation",
		"connect_device", "adjust_setting",
	}
	list := r.List()
	if len(list) != len(want) {
		t.Fatalf("Expected %d tools, got %d", len(want), len(list))
	}
	for i, name := range want {
		if list[i].Name != name {
			t.Errorf("Tool %d: expected %s, got %s", i, name, list[i].Name)
		}
	}

	ipd, ok := r.Get("adjust_ipd")
	if !ok {
		t.Fatal("Expected adjust_ipd to exist")
	}
	p := ipd.Params["value"]
	if !p.Required || *p.Minimum != 50 || *p.Maximum != 80 {
		t.Errorf("Unexpected adjust_ipd value param: %+v", p)
	}

	if _, ok := r.Get("launch_rocket"); ok {
		t.Error("Expected unknown tool lookup to fail")
	}
}

func TestNewRegistryDuplicate(t *testing.T) {
	d := Definition{Name: "x", Binding: Binding{Kind: KindToggleDevice, Target: "x"}}
	_, err := NewRegistry(d, d)
	if !errors.Is(err, ErrDuplicateTool) {
		t.Errorf("Expected ErrDuplicateTool, got %v", err)
	}
}

func TestRegistryIsolatesDefinitions(t *testing.T) {
	lo, hi := 0.0, 100.0
	params := map[string]Param{
		"value": {Type: TypeInteger, Required: true, Minimum: &lo, Maximum: &hi, Enum: []string{"a"}},
	}
	r, err := NewRegistry(Definition{Name: "adjust_volume", Params: params})
	if err != nil {
		t.Fatal(err)
	}

	// Mutating the caller's inputs after registration.
	hi = 5
	params["extra"] = Param{Type: TypeString}

	d, _ := r.Get("adjust_volume")
	if len(d.Params) != 1 {
		t.Errorf("Expected 1 param, got %d", len(d.Params))
	}
	if got := *d.Params["value"].Maximum; got != 100 {
		t.Errorf("Expected maximum 100, got %v", got)
	}

	// Mutating returned definitions.
	*d.Params["value"].Minimum = -50
	d.Params["value"].Enum[0] = "z"
	delete(d.Params, "value")
	listed := r.List()[0]
	listed.Params["other"] = Param{}

	again, _ := r.Get("adjust_volume")
	p, ok := again.Params["value"]
	if !ok || len(again.Params) != 1 {
		t.Fatalf("Expected registry params unchanged, got %v", again.Params)
	}
	if *p.Minimum != 0 || *p.Maximum != 100 || p.Enum[0] != "a" {
		t.Errorf("Expected [0,100] enum a, got [%v,%v] enum %v", *p.Minimum, *p.Maximum, p.Enum)
	}
	if *r.Catalog()[0].Parameters.Properties["value"].Minimum != 0 {
		t.Error("Expected catalog schema minimum 0")
	}
}

func TestCatalogJSON(t *testing.T) {
	out, err := DefaultRegistry().CatalogJSON()
	if err != nil {
		t.Fatalf("CatalogJSON failed: %v", err)
	}

	var entries []map[string]any
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("Catalog is not valid JSON: %v", err)
	}

	var volume map[string]any
	for _, e := range entries {
		if e["name"] == "adjust_volume" {
			volume = e
		}
	}
	if volume == nil {
		t.Fatal("Expected adjust_volume in catalog")
	}
	params := volume["parameters"].(map[string]any)
	props := params["properties"].(map[string]any)
	value := props["value"].(map[string]any)
	if value["type"] != "integer" || value["maximum"] != float64(100) {
		t.Errorf("Unexpected value schema: %v", value)
	}
	if !strings.Contains(out, `"required":["value"]`) {
		t.Errorf("Expected required value in catalog, got %s", out)
	}
}

func TestKindString(t *testing.T) {
	if KindAdjustSetting.String() != "adjust_setting" {
		t.Errorf("Unexpected kind string %s", KindAdjustSetting)
	}
	if Kind(0).String() != "unknown" {
		t.Errorf("Unexpected kind string %s", Kind(0))
	}
}
