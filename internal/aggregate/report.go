package aggregate

import (
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dokzlo13/lampd/internal/interval"
	"github.com/dokzlo13/lampd/internal/logstore"
)

// DayReport summarizes one date over the whole day and over the shift.
type DayReport struct {
	Date    civil.Date `json:"date"`
	FullDay Summary    `json:"full_day"`
	Shift   Summary    `json:"shift"`
}

// DayReport builds the full-day and shift summaries of date.
func (a *Aggregator) DayReport(date civil.Date) (DayReport, error) {
	full, err := a.Summarize(date, Window{})
	if err != nil {
		return DayReport{}, err
	}
	shift, err := a.Summarize(date, a.shift.Window(date, a.loc))
	if err != nil {
		return DayReport{}, err
	}
	return DayReport{
		Date:    date,
		FullDay: full,
		Shift:   shift,
	}, nil
}

// MonthReport is the day reports of every logged date in a month plus their
// totals.
type MonthReport struct {
	Year    int         `json:"year"`
	Month   time.Month  `json:"month"`
	Days    []DayReport `json:"days"`
	FullDay Summary     `json:"full_day"`
	Shift   Summary     `json:"shift"`
}

// MonthReport reports every date of the month that has a log, ascending.
// Returns logstore.ErrNotFound if the month has no logs.
func (a *Aggregator) MonthReport(year int, month time.Month) (MonthReport, error) {
	dates, err := a.store.Dates()
	if err != nil {
		return MonthReport{}, err
	}

	report := MonthReport{
		Year:    year,
		Month:   month,
		FullDay: NewSummary(),
		Shift:   NewSummary(),
	}
	for _, d := range dates {
		if d.Year != year || d.Month != month {
			continue
		}
		day, err := a.DayReport(d)
		if errors.Is(err, logstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return MonthReport{}, err
		}
		report.Days = append(report.Days, day)
		report.FullDay.Add(day.FullDay)
		report.Shift.Add(day.Shift)
	}

	if len(report.Days) == 0 {
		return MonthReport{}, fmt.Errorf("%04d-%02d: %w", year, int(month), logstore.ErrNotFound)
	}
	return report, nil
}

// ItemReport is the activity of one item sheet entry on a date.
type ItemReport struct {
	Intervals []interval.Interval `json:"-"`
	Label     string              `json:"intervals"`
	Summary   Summary             `json:"summary"`
	Colors    ColorMap            `json:"-"`
}

// ItemReport aggregates the intervals of one item: summed durations and the
// merged color map.
func (a *Aggregator) ItemReport(date civil.Date, ivs []interval.Interval) (ItemReport, error) {
	sum, err := a.SummarizeIntervals(date, ivs)
	if err != nil {
		return ItemReport{}, err
	}
	colors, err := a.MinuteColorsForIntervals(date, ivs)
	if err != nil {
		return ItemReport{}, err
	}
	return ItemReport{
		Intervals: ivs,
		Label:     interval.Label(ivs),
		Summary:   sum,
		Colors:    colors,
	}, nil
}
