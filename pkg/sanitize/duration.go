package sanitize

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// DurationHHMISS converts a duration in milliseconds to HH:MI:SS text.
// Missing durations read as zero. Hours are not wrapped at 24, so long runs
// render with three or more hour digits.
func DurationHHMISS(value any) string {
	ms := durationMillis(value)

	seconds := ms / 1000
	minutes := seconds / 60
	seconds = seconds % 60
	hours := minutes / 60
	minutes = minutes % 60

	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

func durationMillis(value any) int64 {
	switch v := value.(type) {
	case nil:
		return 0
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0
		}
		return n
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
