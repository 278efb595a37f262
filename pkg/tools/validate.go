package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Rejection reasons, checked in this order.
var (
	ErrUnknownTool     = errors.New("unknown tool")
	ErrMissingRequired = errors.New("missing required parameter")
	ErrInvalidType     = errors.New("invalid type")
	ErrOutOfRange      = errors.New("out of range")
	ErrNotAllowed      = errors.New("not allowed")
)

// ValidationError explains why a candidate was rejected.
type ValidationError struct {
	Tool   string
	Param  string
	Reason error
	Detail string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("tool ")
	if e.Tool == "" {
		b.WriteString("<missing name>")
	} else {
		b.WriteString(e.Tool)
	}
	if e.Param != "" {
		b.WriteString(": parameter ")
		b.WriteString(e.Param)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason.Error())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error {
	return e.Reason
}

func reject(tool, param string, reason error, format string, args ...any) *ValidationError {
	return &ValidationError{Tool: tool, Param: param, Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Validate checks c against its definition and builds the typed Call.
//
// Rules run in a fixed order over all parameters: tool name, required
// presence, primitive type, numeric bounds, enum membership. The first
// violation is returned as a *ValidationError.
func (r *Registry) Validate(c Candidate) (Call, error) {
	def, ok := r.Get(c.Name)
	if !ok {
		return nil, reject(c.Name, "", ErrUnknownTool, "")
	}
	names := def.ParamNames()

	for _, name := range names {
		if _, present := c.Parameters[name]; !present && def.Params[name].Required {
			return nil, reject(def.Name, name, ErrMissingRequired, "")
		}
	}

	values := make(map[string]any, len(names))
	for _, name := range names {
		raw, present := c.Parameters[name]
		if !present {
			continue
		}
		v, err := coerce(def.Params[name].Type, raw)
		if err != nil {
			return nil, reject(def.Name, name, ErrInvalidType, "expected %s, got %v", def.Params[name].Type, raw)
		}
		values[name] = v
	}

	for _, name := range names {
		p := def.Params[name]
		v, ok := values[name]
		if !ok {
			continue
		}
		f, numeric := asFloat(v)
		if !numeric {
			continue
		}
		if p.Minimum != nil && f < *p.Minimum {
			return nil, reject(def.Name, name, ErrOutOfRange, "%v below minimum %v", v, *p.Minimum)
		}
		if p.Maximum != nil && f > *p.Maximum {
			return nil, reject(def.Name, name, ErrOutOfRange, "%v above maximum %v", v, *p.Maximum)
		}
	}

	for _, name := range names {
		p := def.Params[name]
		v, ok := values[name]
		if !ok || len(p.Enum) == 0 {
			continue
		}
		if !slices.Contains(p.Enum, fmt.Sprint(v)) {
			return nil, reject(def.Name, name, ErrNotAllowed, "%v not in %v", v, p.Enum)
		}
	}

	return bind(def, values)
}

// bind maps validated values onto the definition's binding.
func bind(def Definition, values map[string]any) (Call, error) {
	target := def.Binding.Target
	if def.Binding.TargetParam != "" {
		s, _ := values[def.Binding.TargetParam].(string)
		target = s
	}
	switch def.Binding.Kind {
	case KindToggleDevice:
		return ToggleDevice{Tool: def.Name, DeviceID: target}, nil
	case KindAdjustSetting:
		v, ok := values[def.Binding.ValueParam].(int)
		if !ok {
			return nil, reject(def.Name, def.Binding.ValueParam, ErrMissingRequired, "")
		}
		return AdjustSetting{Tool: def.Name, SettingID: target, Value: v}, nil
	default:
		return nil, reject(def.Name, "", ErrUnknownTool, "no binding")
	}
}

// coerce converts a decoded JSON value to the Go type for t. Integers given
// as numeric strings ("75") or whole floats (75.0) are accepted.
func coerce(t ParamType, v any) (any, error) {
	switch t {
	case TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case TypeInteger:
		switch n := v.(type) {
		case int:
			return n, nil
		case float64:
			if n == math.Trunc(n) && !math.IsInf(n, 0) && math.Abs(n) < math.MaxInt32 {
				return int(n), nil
			}
		case json.Number:
			if i, err := n.Int64(); err == nil {
				return int(i), nil
			}
		case string:
			if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
				return i, nil
			}
		}
	case TypeNumber:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		case json.Number:
			if f, err := n.Float64(); err == nil {
				return f, nil
			}
		}
	case TypeBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	}
	return nil, ErrInvalidType
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// Parse is Extract followed by Validate for every candidate. Accepted calls
// and rejections are returned separately, each in order of appearance.
func Parse(e *Extractor, r *Registry, text string) ([]Call, []error) {
	var (
		calls []Call
		errs  []error
	)
	for _, c := range e.Extract(text) {
		call, err := r.Validate(c)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		calls = append(calls, call)
	}
	return calls, errs
}
