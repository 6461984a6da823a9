package music

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrBadSeekExpression wraps an unparseable seek input.
type ErrBadSeekExpression struct {
	Input string
}

func (e *ErrBadSeekExpression) Error() string {
	return fmt.Sprintf("cannot parse %q as a position; try 1:30, 3min or -30sec", e.Input)
}

var (
	clockPattern = regexp.MustCompile(`^(?:(\d+):)?(\d+):(\d{1,2})$`)
	unitPattern  = regexp.MustCompile(`^(\d+)\s*(h|hour|hours|m|min|mins|minute|minutes|s|sec|secs|second|seconds)$`)
)

// ParseSeek turns a seek expression into a position. Accepted forms:
// "1:30" and "1:02:30" clock times, "3min" / "90sec" / "1h" unit
// suffixes, and bare seconds. A leading "-" or "+" makes the value
// relative to the current playhead.
func ParseSeek(input string) (position time.Duration, relative bool, err error) {
	expr := strings.ToLower(strings.TrimSpace(input))
	sign := time.Duration(1)
	switch {
	case strings.HasPrefix(expr, "-"):
		relative = true
		sign = -1
		expr = strings.TrimSpace(expr[1:])
	case strings.HasPrefix(expr, "+"):
		relative = true
		expr = strings.TrimSpace(expr[1:])
	}
	if expr == "" {
		return 0, false, &ErrBadSeekExpression{Input: input}
	}

	if m := clockPattern.FindStringSubmatch(expr); m != nil {
		hours := 0
		if m[1] != "" {
			hours, _ = strconv.Atoi(m[1])
		}
		minutes, _ := strconv.Atoi(m[2])
		seconds, _ := strconv.Atoi(m[3])
		if seconds > 59 || (m[1] != "" && minutes > 59) {
			return 0, false, &ErrBadSeekExpression{Input: input}
		}
		total := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second
		return sign * total, relative, nil
	}

	if m := unitPattern.FindStringSubmatch(expr); m != nil {
		value, _ := strconv.Atoi(m[1])
		var unit time.Duration
		switch m[2][0] {
		case 'h':
			unit = time.Hour
		case 'm':
			unit = time.Minute
		default:
			unit = time.Second
		}
		return sign * time.Duration(value) * unit, relative, nil
	}

	if value, convErr := strconv.Atoi(expr); convErr == nil {
		return sign * time.Duration(value) * time.Second, relative, nil
	}
	return 0, false, &ErrBadSeekExpression{Input: input}
}

// ResolveSeek applies a parsed expression to the current playhead and
// clamps the result to [0, length].
func ResolveSeek(position time.Duration, relative bool, current, length time.Duration) time.Duration {
	target := position
	if relative {
		target = current + position
	}
	if target < 0 {
		target = 0
	}
	if length > 0 && target > length {
		target = length
	}
	return target
}
