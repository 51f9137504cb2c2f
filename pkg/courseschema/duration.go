package courseschema

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	hourComponentRE   = regexp.MustCompile(`(?i)(\d+)\s*h`)
	minuteComponentRE = regexp.MustCompile(`(?i)(\d+)\s*m`)
	minComponentRE    = regexp.MustCompile(`(?i)(\d+)\s*min`)
	leadingIntegerRE  = regexp.MustCompile(`^\s*(\d+)`)
)

// ParseDurationToMinutes converts a free-text or numeric duration into whole
// minutes. The boolean is false when nothing parseable was found; callers must
// not read a zero as "no duration".
func ParseDurationToMinutes(v any) (int, bool) {
	if v == nil {
		return 0, false
	}
	if s, ok := v.(string); ok {
		return parseDurationString(s)
	}
	f, ok := asFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || math.Round(f) > maxWholeNumber {
		return 0, false
	}
	return int(math.Round(f)), true
}

func parseDurationString(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	matched := false
	total := 0
	if m := hourComponentRE.FindStringSubmatch(s); m != nil {
		if hours, err := strconv.Atoi(m[1]); err == nil && hours <= maxWholeNumber {
			total += hours * 60
			matched = true
		}
	}

	minuteMatch := minuteComponentRE.FindStringSubmatch(s)
	if minuteMatch == nil {
		minuteMatch = minComponentRE.FindStringSubmatch(s)
	}
	if minuteMatch != nil {
		if minutes, err := strconv.Atoi(minuteMatch[1]); err == nil && minutes <= maxWholeNumber {
			total += minutes
			matched = true
		}
	}

	if total > maxWholeNumber {
		return 0, false
	}
	if total > 0 {
		return total, true
	}

	if m := leadingIntegerRE.FindStringSubmatch(s); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n <= maxWholeNumber {
			return n, true
		}
	}
	if matched {
		return 0, true
	}
	return 0, false
}

// FormatMinutes renders minutes for display: "45 min", "2h", "1h 20m".
// It returns "" for minutes <= 0.
func FormatMinutes(minutes int) string {
	if minutes <= 0 {
		return ""
	}
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	hours := minutes / 60
	rest := minutes % 60
	if rest == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, rest)
}
