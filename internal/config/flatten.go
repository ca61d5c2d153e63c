package config

import (
	"fmt"
	"strconv"
	"strings"
)

// secretKeys lists the dotted keys whose values are masked on display.
var secretKeys = map[string]bool{
	"api.api_key": true,
}

// IsSecretKey reports whether key holds a credential.
func IsSecretKey(key string) bool {
	return secretKeys[key]
}

// Flatten turns nested JSON objects into dotted keys:
// {"poll": {"timeout": "10s"}} becomes {"poll.timeout": "10s"}.
// Empty objects produce no keys.
func Flatten(m map[string]any) map[string]any {
	out := make(map[string]any)
	flattenInto(out, "", m)
	return out
}

func flattenInto(out map[string]any, prefix string, m map[string]any) {
	for k, v := range m {
		if prefix != "" {
			k = prefix + "." + k
		}
		if child, ok := v.(map[string]any); ok {
			flattenInto(out, k, child)
			continue
		}
		out[k] = v
	}
}

// Unflatten is the inverse of Flatten. A scalar standing where a later key
// needs an object is replaced by that object.
func Unflatten(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for key, v := range flat {
		parts := strings.Split(key, ".")
		node := out
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[part] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = v
	}
	return out
}

// Schema returns every settable key with its zero-or-default value, taken
// from the flattened defaults. The value's dynamic type (string, float64 or
// bool) is the type the key accepts.
func Schema() map[string]any {
	m, err := ToMap(defaults())
	if err != nil {
		// defaults always marshal
		panic(err)
	}
	return Flatten(m)
}

// ParseValue converts raw command line text to the JSON type key holds in
// schema. Unknown keys are rejected.
func ParseValue(schema map[string]any, key, raw string) (any, error) {
	current, ok := schema[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	switch current.(type) {
	case bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s expects true or false, got %q", key, raw)
		}
		return b, nil
	case float64:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%s expects an integer, got %q", key, raw)
		}
		return float64(n), nil
	default:
		return raw, nil
	}
}

// MaskSecrets returns a copy of flat with secrets shown as "***" followed by
// their last four characters. Empty secrets stay empty.
func MaskSecrets(flat map[string]any) map[string]any {
	out := make(map[string]any, len(flat))
	for k, v := range flat {
		out[k] = v
		if s, ok := v.(string); ok && secretKeys[k] && s != "" {
			out[k] = "***" + s[max(0, len(s)-4):]
		}
	}
	return out
}
