package sanitize

import "time"

// TimestampLayout is the warehouse text layout for run timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000"

// Sentinels for missing run boundaries. A missing start sorts before any real
// timestamp, a missing end (run still in flight) sorts after.
const (
	MinTimestamp = "1900-01-01T00:00:00.000"
	MaxTimestamp = "2999-01-01T00:00:00.000"
)

// StartTimestamp formats a run start. Missing values become MinTimestamp.
func StartTimestamp(value any) string {
	return timestampOr(value, MinTimestamp)
}

// EndTimestamp formats a run end. Missing values become MaxTimestamp.
func EndTimestamp(value any) string {
	return timestampOr(value, MaxTimestamp)
}

// Timestamp formats an informational timestamp. Missing values become NoneValue.
func Timestamp(value any) string {
	return timestampOr(value, NoneValue)
}

func timestampOr(value any, fallback string) string {
	s, ok := value.(string)
	if !ok || s == "" {
		return fallback
	}

	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		// not a recognizable timestamp, keep the raw text
		return s
	}
	return t.UTC().Format(TimestampLayout)
}
