package media

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseTimestamp converts "M:SS", "MM:SS" or "H:MM:SS" (fractions allowed)
// into seconds. A bare number is read as seconds.
func ParseTimestamp(ts string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(ts), ":")
	values := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("invalid timestamp %q", ts)
		}
		values[i] = v
	}

	switch len(values) {
	case 1:
		return values[0], nil
	case 2:
		return values[0]*60 + values[1], nil
	case 3:
		return values[0]*3600 + values[1]*60 + values[2], nil
	default:
		return 0, fmt.Errorf("invalid timestamp %q", ts)
	}
}

// FormatTimestamp renders seconds as M:SS.mmm, or H:MM:SS.mmm past an hour.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := int(seconds / 3600)
	minutes := int(seconds/60) % 60
	secs := seconds - float64(hours*3600+minutes*60)

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%06.3f", hours, minutes, secs)
	}
	return fmt.Sprintf("%d:%06.3f", minutes, secs)
}
