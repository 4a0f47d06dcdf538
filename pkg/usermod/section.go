package usermod

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Field is one key/value pair of a configuration section
type Field struct {
	Key   string
	Value any
}

// Section is a configuration object that keeps its key order when
// serialised to JSON
type Section []Field

// MarshalJSON writes the section as a JSON object in field order
func (s Section) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal field %s: %w", f.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Map returns the section as a plain map
func (s Section) Map() map[string]any {
	m := make(map[string]any, len(s))
	for _, f := range s {
		m[f.Key] = f.Value
	}
	return m
}

// Lookup returns the named namespace of a configuration root as a map.
// It accepts sections, plain maps and JSON-decoded objects. ok is false when
// the namespace is missing or is not an object.
func Lookup(root map[string]any, namespace string) (map[string]any, bool) {
	if root == nil {
		return nil, false
	}
	switch v := root[namespace].(type) {
	case map[string]any:
		return v, true
	case Section:
		return v.Map(), true
	default:
		return nil, false
	}
}

// Bool converts a configuration value to a bool. Numbers are true when
// non-zero; strings accept strconv.ParseBool forms plus "on"/"off".
func Bool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "on":
			return true, true
		case "off":
			return false, true
		}
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, false
		}
		return parsed, true
	}
	if n, ok := Int(v); ok {
		return n != 0, true
	}
	return false, false
}

// Int converts a configuration value to an int. Floats are truncated;
// numeric strings are parsed.
func Int(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		if uint64(n) > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		if n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		if f, err := n.Float64(); err == nil {
			return floatToInt(f)
		}
		return 0, false
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.Atoi(s); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return floatToInt(f)
		}
		return 0, false
	default:
		return 0, false
	}
}

func floatToInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}
