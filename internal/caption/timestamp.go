package caption

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// TimestampError reports a clock string that could not be parsed.
// Default is the value lenient parsing substitutes for it.
type TimestampError struct {
	Line    int // 1-based line number, 0 when parsed outside a transcript
	Value   string
	Default float64
	Reason  string
}

func (e *TimestampError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: invalid timestamp %q: %s", e.Line, e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid timestamp %q: %s", e.Value, e.Reason)
}

// ParseTimestamp converts an HH:MM:SS,mmm (or HH:MM:SS.mmm) clock string to
// seconds. Anything malformed yields 0.
func ParseTimestamp(s string) float64 {
	v, err := ParseTimestampStrict(s)
	if err != nil {
		return 0
	}
	return v
}

// ParseTimestampStrict is ParseTimestamp with the failure reported.
func ParseTimestampStrict(s string) (float64, error) {
	clock := strings.ReplaceAll(s, ",", ".")
	parts := strings.Split(clock, ":")
	if len(parts) != 3 {
		return 0, &TimestampError{Value: s, Reason: fmt.Sprintf("expected 3 components, got %d", len(parts))}
	}

	var total float64
	for i, weight := range []float64{3600, 60, 1} {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, &TimestampError{Value: s, Reason: fmt.Sprintf("component %q is not a number", parts[i])}
		}
		total += v * weight
	}
	if total < 0 {
		return 0, &TimestampError{Value: s, Reason: "negative offset"}
	}
	return total, nil
}

// FormatTimestamp renders seconds as an SRT clock (HH:MM:SS,mmm).
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	ms := int64(math.Round(seconds * 1000))
	hours := ms / 3_600_000
	minutes := (ms / 60_000) % 60
	secs := (ms / 1000) % 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, ms%1000)
}
