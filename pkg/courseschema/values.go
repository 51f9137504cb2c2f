package courseschema

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Input records arrive as decoded JSON (float64 numbers), decoded YAML (int
// numbers) or hand-built Go maps. These helpers read them without caring which.

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		if t == nil {
			return nil, false
		}
		return t, true
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			key, ok := k.(string)
			if !ok {
				continue
			}
			out[key] = val
		}
		return out, true
	default:
		return nil, false
	}
}

func asSlice(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []map[string]any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out, true
	case []string:
		out := make([]any, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out, true
	default:
		return nil, false
	}
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// maxWholeNumber bounds every number read as an int so conversions and
// aggregates cannot overflow.
const maxWholeNumber = math.MaxInt32

// asInt accepts whole numbers only; 1.5 is not an index.
func asInt(v any) (int, bool) {
	f, ok := asFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > maxWholeNumber {
		return 0, false
	}
	return int(f), true
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// nonEmptyString returns the first key holding a non-blank string.
func nonEmptyString(m map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && strings.TrimSpace(s) != "" {
			return s, true
		}
	}
	return "", false
}

// identifier reads ids that may have been stored as numbers.
func identifier(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return "", false
		}
		return t, true
	default:
		if n, ok := asInt(v); ok {
			return strconv.Itoa(n), true
		}
		return "", false
	}
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func has(m map[string]any, key string) bool {
	v, ok := m[key]
	return ok && v != nil
}

// shallowCopy copies the top level only; nested values are shared with the
// input and must not be mutated in place.
func shallowCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func extensionsFrom(m map[string]any, known map[string]struct{}) map[string]any {
	var ext map[string]any
	for k, v := range m {
		if _, ok := known[k]; ok {
			continue
		}
		if ext == nil {
			ext = make(map[string]any)
		}
		ext[k] = v
	}
	return ext
}

func keySet(keys ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		out[k] = struct{}{}
	}
	return out
}

func intPtr(v int) *int {
	return &v
}
