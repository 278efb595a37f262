// Package tools defines the control-panel tool catalog and turns model
// output into validated, typed calls.
//
// The pipeline is Extract (text to candidates), then Validate (candidate
// to Call). Only a Call that passed validation reaches the dispatcher.
package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/google/jsonschema-go/jsonschema"
)

// ParamType is the primitive type of a tool parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
)

// Param describes one tool parameter.
type Param struct {
	Type        ParamType
	Description string
	Required    bool
	Minimum     *float64
	Maximum     *float64
	Enum        []string
}

func (p Param) clone() Param {
	p.Minimum = clonePtr(p.Minimum)
	p.Maximum = clonePtr(p.Maximum)
	p.Enum = slices.Clone(p.Enum)
	return p
}

func clonePtr(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// Kind is the state mutation a tool maps to.
type Kind int

const (
	// KindToggleDevice flips a device's connection state.
	KindToggleDevice Kind = iota + 1
	// KindAdjustSetting sets a setting to a new value.
	KindAdjustSetting
)

func (k Kind) String() string {
	switch k {
	case KindToggleDevice:
		return "toggle_device"
	case KindAdjustSetting:
		return "adjust_setting"
	default:
		return "unknown"
	}
}

// Binding ties a tool to its target. Either Target names a fixed device or
// setting id, or TargetParam names the parameter that carries it.
type Binding struct {
	Kind        Kind
	Target      string
	TargetParam string
	ValueParam  string // adjust only
}

// Definition is an immutable tool description.
type Definition struct {
	Name        string
	Description string
	Params      map[string]Param
	Binding     Binding
}

// clone returns a copy that shares no memory with d.
func (d Definition) clone() Definition {
	if d.Params != nil {
		params := make(map[string]Param, len(d.Params))
		for name, p := range d.Params {
			params[name] = p.clone()
		}
		d.Params = params
	}
	return d
}

// ParamNames returns the parameter names in sorted order.
func (d Definition) ParamNames() []string {
	names := make([]string, 0, len(d.Params))
	for name := range d.Params {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// JSONSchema renders the parameter schema as a JSON Schema object.
func (d Definition) JSONSchema() *jsonschema.Schema {
	s := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(d.Params)),
	}
	for _, name := range d.ParamNames() {
		p := d.Params[name]
		ps := &jsonschema.Schema{
			Type:        string(p.Type),
			Description: p.Description,
			Minimum:     clonePtr(p.Minimum),
			Maximum:     clonePtr(p.Maximum),
		}
		for _, e := range p.Enum {
			ps.Enum = append(ps.Enum, e)
		}
		s.Properties[name] = ps
		if p.Required {
			s.Required = append(s.Required, name)
		}
	}
	return s
}

// ErrDuplicateTool is returned when two definitions share a name.
var ErrDuplicateTool = errors.New("duplicate tool")

// Registry is a read-only set of tool definitions. It copies definitions
// on the way in and out, so callers cannot mutate the catalog.
type Registry struct {
	defs  map[string]Definition
	order []string
}

// NewRegistry builds a registry. Definitions keep their given order.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		if d.Name == "" {
			return nil, errors.New("tool definition without name")
		}
		if _, dup := r.defs[d.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTool, d.Name)
		}
		r.defs[d.Name] = d.clone()
		r.order = append(r.order, d.Name)
	}
	return r, nil
}

// Get looks up a definition by name.
func (r *Registry) Get(name string) (Definition, bool) {
	d, ok := r.defs[name]
	if !ok {
		return Definition{}, false
	}
	return d.clone(), true
}

// List returns all definitions in registration order.
func (r *Registry) List() []Definition {
	out := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.defs[name].clone())
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.order)
}

// CatalogEntry is the model-facing description of one tool.
type CatalogEntry struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

// Catalog returns the entries the model is told about.
func (r *Registry) Catalog() []CatalogEntry {
	out := make([]CatalogEntry, 0, len(r.order))
	for _, d := range r.List() {
		out = append(out, CatalogEntry{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.JSONSchema(),
		})
	}
	return out
}

// CatalogJSON renders Catalog as JSON for prompt embedding.
func (r *Registry) CatalogJSON() (string, error) {
	b, err := json.Marshal(r.Catalog())
	if err != nil {
		return "", fmt.Errorf("marshal tool catalog: %w", err)
	}
	return string(b), nil
}
