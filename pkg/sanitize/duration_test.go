package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDurationHHMISS(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{name: "nil reads as zero", input: nil, expected: "00:00:00"},
		{name: "zero", input: float64(0), expected: "00:00:00"},
		{name: "sub second truncates", input: float64(999), expected: "00:00:00"},
		{name: "one second", input: float64(1000), expected: "00:00:01"},
		{name: "minutes and seconds", input: float64(83000), expected: "00:01:23"},
		{name: "one hour", input: float64(3600000), expected: "01:00:00"},
		{name: "hours do not wrap at 24", input: float64(90 * 3600 * 1000), expected: "90:00:00"},
		{name: "hundreds of hours keep all digits", input: int64(123*3600*1000 + 45*60*1000 + 6000), expected: "123:45:06"},
		{name: "unparseable string reads as zero", input: "abc", expected: "00:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DurationHHMISS(tt.input))
		})
	}
}
