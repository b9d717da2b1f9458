package sanitize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected any
	}{
		{
			name:     "nil becomes None",
			input:    nil,
			expected: "None",
		},
		{
			name:     "scalar passes through",
			input:    "hello",
			expected: "hello",
		},
		{
			name: "nested nulls replaced at every depth",
			input: map[string]any{
				"a": nil,
				"b": map[string]any{
					"c": nil,
					"d": "kept",
				},
				"e": []any{nil, "x", map[string]any{"f": nil}},
			},
			expected: map[string]any{
				"a": "None",
				"b": map[string]any{
					"c": "None",
					"d": "kept",
				},
				"e": []any{"None", "x", map[string]any{"f": "None"}},
			},
		},
		{
			name:     "empty map stays empty",
			input:    map[string]any{},
			expected: map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Clean(tt.input))
		})
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	input := map[string]any{
		"a": nil,
		"b": []any{nil, map[string]any{"c": nil}},
	}

	once := Clean(input)
	twice := Clean(once)
	assert.Equal(t, once, twice)
}

func TestCleanLeavesNoNulls(t *testing.T) {
	input := map[string]any{
		"top": nil,
		"deep": map[string]any{
			"mid": []any{nil, map[string]any{"leaf": nil}},
		},
	}

	data, err := json.Marshal(Clean(input))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "null")
}

func TestJSONText(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{
			name:     "nil collapses to empty object",
			input:    nil,
			expected: "{}",
		},
		{
			name:     "None sentinel collapses to empty object",
			input:    "None",
			expected: "{}",
		},
		{
			name:     "payload is cleaned and serialized",
			input:    map[string]any{"rows": nil, "source": "blob"},
			expected: `{"rows":"None","source":"blob"}`,
		},
		{
			name:     "empty map serializes as empty object",
			input:    map[string]any{},
			expected: "{}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, JSONText(tt.input))
		})
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{name: "nil", input: nil, expected: "None"},
		{name: "string", input: "abc", expected: "abc"},
		{name: "whole float", input: float64(5023), expected: "5023"},
		{name: "fractional float", input: 12.5, expected: "12.5"},
		{name: "bool", input: true, expected: "true"},
		{name: "int64", input: int64(99), expected: "99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, String(tt.input))
		})
	}
}
