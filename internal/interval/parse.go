package interval

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// layouts are tried in order; the first that parses wins. Go's single-digit
// month, day, hour, minute and second verbs also accept two digits, so the
// last two cover the zero-padded forms as well.
var layouts = []string{
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006/1/2 15:4:5",
	"2006/1/2 15:4",
}

// ParseError reports a timestamp that matches none of the accepted forms.
type ParseError struct {
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid date-time %q", e.Input)
}

// ParseFlexible parses a human-entered "YYYY/M/D H:M[:S]" timestamp in loc.
// Components may or may not be zero-padded and seconds are optional.
func ParseFlexible(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	if t, ok := parseFields(s, loc); ok {
		return t, nil
	}
	return time.Time{}, &ParseError{Input: s}
}

// parseFields is the last resort: split on separators and read
// year, month, day, hour, minute and optional second as integers.
func parseFields(s string, loc *time.Location) (time.Time, bool) {
	parts := strings.Fields(strings.NewReplacer("/", " ", ":", " ").Replace(s))
	if len(parts) < 5 {
		return time.Time{}, false
	}

	var n [6]int
	for i := 0; i < 6; i++ {
		if i >= len(parts) {
			break
		}
		v, err := strconv.Atoi(parts[i])
		if err != nil {
			return time.Time{}, false
		}
		n[i] = v
	}

	year, month, day, hour, minute, second := n[0], n[1], n[2], n[3], n[4], n[5]
	if month < 1 || month > 12 || hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, loc)
	if t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}
