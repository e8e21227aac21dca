// Copyright 2024-2026 Aiku AI

package node

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aiku/bluebubbles-node/pkg/bluebubbles"
)

// ErrMissingParameter is wrapped by errors about absent required parameters.
var ErrMissingParameter = errors.New("missing required parameter")

// Parameters holds the user-supplied values for an action. Values may be
// native Go types or strings, as produced by the CLI.
type Parameters map[string]any

// Has reports whether name is set to a non-empty value.
func (p Parameters) Has(name string) bool {
	v, ok := p[name]
	if !ok || v == nil {
		return false
	}
	if s, isStr := v.(string); isStr {
		return strings.TrimSpace(s) != ""
	}
	return true
}

// String returns a required string parameter.
func (p Parameters) String(name string) (string, error) {
	if !p.Has(name) {
		return "", fmt.Errorf("%w %q", ErrMissingParameter, name)
	}
	return p.OptString(name, ""), nil
}

// OptString returns a string parameter or def when unset.
func (p Parameters) OptString(name, def string) string {
	if !p.Has(name) {
		return def
	}
	switch v := p[name].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Int returns an integer parameter or def when unset.
func (p Parameters) Int(name string, def int) (int, error) {
	if !p.Has(name) {
		return def, nil
	}
	switch v := p[name].(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("parameter %q must be a whole number, got %v", name, v)
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("parameter %q must be a number: %w", name, err)
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("parameter %q must be a number: %w", name, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("parameter %q must be a number, got %T", name, v)
	}
}

// Bool returns a boolean parameter or def when unset.
func (p Parameters) Bool(name string, def bool) (bool, error) {
	if !p.Has(name) {
		return def, nil
	}
	switch v := p[name].(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, fmt.Errorf("parameter %q must be true or false: %w", name, err)
		}
		return b, nil
	default:
		return false, fmt.Errorf("parameter %q must be true or false, got %T", name, v)
	}
}

// StringSlice returns a list parameter. Strings are split on commas.
func (p Parameters) StringSlice(name string) ([]string, error) {
	if !p.Has(name) {
		return nil, nil
	}
	var out []string
	switch v := p[name].(type) {
	case []string:
		out = append(out, v...)
	case []any:
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
	case string:
		out = strings.Split(v, ",")
	default:
		return nil, fmt.Errorf("parameter %q must be a list, got %T", name, v)
	}
	cleaned := out[:0]
	for _, s := range out {
		if s = strings.TrimSpace(s); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return cleaned, nil
}

// Pairs returns a name/value pair list parameter. Lists of {name, value}
// objects and plain maps are accepted.
func (p Parameters) Pairs(name string) ([]bluebubbles.NameValuePair, error) {
	if !p.Has(name) {
		return nil, nil
	}
	switch v := p[name].(type) {
	case []bluebubbles.NameValuePair:
		return v, nil
	case map[string]any:
		out := make([]bluebubbles.NameValuePair, 0, len(v))
		for k, val := range v {
			out = append(out, bluebubbles.NameValuePair{Name: k, Value: val})
		}
		return out, nil
	case []any:
		out := make([]bluebubbles.NameValuePair, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("parameter %q item %d must be an object, got %T", name, i, item)
			}
			pairName, _ := m["name"].(string)
			if pairName == "" {
				return nil, fmt.Errorf("parameter %q item %d has no name", name, i)
			}
			out = append(out, bluebubbles.NameValuePair{Name: pairName, Value: m["value"]})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("parameter %q must be a list of name/value pairs, got %T", name, v)
	}
}
