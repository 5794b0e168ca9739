package logstore

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dokzlo13/lampd/internal/calendar"
)

// TimeLayout is the time-of-day layout of the first column.
const TimeLayout = "15:04:05"

// minFields is the number of columns a usable row must have.
const minFields = 5

// Sample is one minute of sensor readings.
type Sample struct {
	Time    time.Time
	Red     float64
	Yellow  float64
	Green   float64
	Current float64
}

// ParseError describes a row that cannot be interpreted. It is local to the
// row: readers skip it and continue.
type ParseError struct {
	Row    Row
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed row %q: %s: %v", strings.Join(e.Row, ","), e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed row %q: %s", strings.Join(e.Row, ","), e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// FormatRow renders a sample as one log line, newline included.
func FormatRow(s Sample) string {
	return strings.Join([]string{
		s.Time.Format(TimeLayout),
		formatFloat(s.Red),
		formatFloat(s.Yellow),
		formatFloat(s.Green),
		formatFloat(s.Current),
	}, ",") + "\n"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseTime interprets the first column of a row as a time of day on date.
func ParseTime(date civil.Date, row Row, loc *time.Location) (time.Time, error) {
	if len(row) == 0 {
		return time.Time{}, &ParseError{Row: row, Reason: "empty row"}
	}
	tod, err := time.Parse(TimeLayout, strings.TrimSpace(row[0]))
	if err != nil {
		return time.Time{}, &ParseError{Row: row, Reason: "invalid timestamp", Err: err}
	}
	return calendar.At(date, tod.Hour(), tod.Minute(), tod.Second(), loc), nil
}

// ParseSample converts a stored row into a Sample on the given date.
func ParseSample(date civil.Date, row Row, loc *time.Location) (Sample, error) {
	if len(row) < minFields {
		return Sample{}, &ParseError{Row: row, Reason: fmt.Sprintf("expected %d fields, got %d", minFields, len(row))}
	}

	t, err := ParseTime(date, row, loc)
	if err != nil {
		return Sample{}, err
	}

	var values [4]float64
	for i := range values {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i+1]), 64)
		if err != nil {
			return Sample{}, &ParseError{Row: row, Reason: fmt.Sprintf("field %d is not numeric", i+1), Err: err}
		}
		values[i] = v
	}

	return Sample{
		Time:    t,
		Red:     values[0],
		Yellow:  values[1],
		Green:   values[2],
		Current: values[3],
	}, nil
}
