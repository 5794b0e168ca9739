// Package calendar holds the day-bound helpers used to partition the sample
// log and clip intervals to a single civil date.
package calendar

import (
	"time"

	"cloud.google.com/go/civil"
)

// At returns the instant h:m:s on date in loc.
func At(date civil.Date, h, m, s int, loc *time.Location) time.Time {
	return time.Date(date.Year, date.Month, date.Day, h, m, s, 0, loc)
}

// DayEnd returns 23:59:59 of date in loc, the upper clip bound of intervals.
func DayEnd(date civil.Date, loc *time.Location) time.Time {
	return At(date, 23, 59, 59, loc)
}

// NextMidnight returns the exclusive end of date: 00:00:00 of the following
// day in loc.
func NextMidnight(date civil.Date, loc *time.Location) time.Time {
	return date.AddDays(1).In(loc)
}
