// Package labutil holds the small formatting and time helpers shared by the
// UI, API, and CLI.
package labutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrBadDuration is returned when a duration string has no leading integer
// or no unit.
var ErrBadDuration = errors.New("unparseable duration")

// FormatDate renders t as a short US date such as "Mar 4, 2025".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006")
}

// TruncateText returns s unchanged when it has at most n characters,
// otherwise its first n characters followed by "...".
func TruncateText(s string, n int) string {
	if n < 0 {
		n = 0
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

var minutesPerUnit = map[string]int{
	"minute":  1,
	"minutes": 1,
	"hour":    60,
	"hours":   60,
	"day":     60 * 24,
	"days":    60 * 24,
}

// CalculateDuration converts strings like "30 minutes", "2 hours" or
// "1 day" to minutes. Only the leading integer of the first word counts,
// so "1.5 hours" is 60. An unknown unit yields 0.
func CalculateDuration(s string) (int, error) {
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrBadDuration, s)
	}
	perUnit, ok := minutesPerUnit[strings.ToLower(fields[1])]
	if !ok {
		return 0, nil
	}
	value, ok := leadingInt(fields[0])
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrBadDuration, s)
	}
	return value * perUnit, nil
}

// leadingInt parses an optional sign followed by digits, ignoring any
// trailing characters.
func leadingInt(s string) (int, bool) {
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// SumDurations adds up the minutes of every parseable duration and
// returns the indexes of the ones that could not be parsed.
func SumDurations(durations ...string) (total int, skipped []int) {
	for i, d := range durations {
		m, err := CalculateDuration(d)
		if err != nil {
			skipped = append(skipped, i)
			continue
		}
		total += m
	}
	return total, skipped
}

// FormatMinutes renders a minute count for display: "45 minutes",
// "2 hours", "1 day 3 hours 5 minutes".
func FormatMinutes(minutes int) string {
	if minutes <= 0 {
		return "0 minutes"
	}
	days := minutes / (60 * 24)
	hours := (minutes % (60 * 24)) / 60
	mins := minutes % 60

	var parts []string
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if mins > 0 {
		parts = append(parts, plural(mins, "minute"))
	}
	return strings.Join(parts, " ")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}
