// Package sanitize normalizes raw Data Factory API payloads into
// warehouse-safe values. Null leaves become the literal "None", timestamps
// get fixed sentinels, and JSON payloads are serialized as text so the
// staging promote step can validate them.
package sanitize

import (
	"encoding/json"
	"strconv"
)

// NoneValue replaces null leaves. The warehouse does not accept bare nulls
// inside the flattened columns.
const NoneValue = "None"

// EmptyJSON replaces null or sentinel JSON payloads.
const EmptyJSON = "{}"

// Clean recursively replaces nil values with NoneValue. Maps and slices are
// rebuilt; every other value passes through unchanged. Cleaning an already
// clean value is a no-op.
func Clean(value any) any {
	switch v := value.(type) {
	case nil:
		return NoneValue
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = Clean(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Clean(item)
		}
		return out
	default:
		return value
	}
}

// JSONText cleans a payload and serializes it as JSON text. Null payloads and
// payloads cleaned down to the bare NoneValue collapse to EmptyJSON.
func JSONText(value any) string {
	if value == nil {
		return EmptyJSON
	}

	cleaned := Clean(value)
	if s, ok := cleaned.(string); ok && s == NoneValue {
		return EmptyJSON
	}

	data, err := json.Marshal(cleaned)
	if err != nil {
		return EmptyJSON
	}
	return string(data)
}

// String renders a scalar leaf as warehouse text. Nil becomes NoneValue.
func String(value any) string {
	switch v := value.(type) {
	case nil:
		return NoneValue
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return NoneValue
		}
		return string(data)
	}
}
