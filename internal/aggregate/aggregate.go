// Package aggregate replays logged samples through the state classifier to
// build minute color maps and per-state duration summaries.
package aggregate

import (
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lampd/internal/calendar"
	"github.com/dokzlo13/lampd/internal/classify"
	"github.com/dokzlo13/lampd/internal/interval"
	"github.com/dokzlo13/lampd/internal/logstore"
)

// minute is the time one logged row stands for.
const minute = time.Minute

// Store is the read side of the sample log.
type Store interface {
	ReadAll(date civil.Date) ([]logstore.Row, error)
	Dates() ([]civil.Date, error)
}

// Window is a half-open range [Start, End). A zero bound means the start or
// the end of the day.
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowOf converts an interval into a window.
func WindowOf(iv interval.Interval) Window {
	return Window{Start: iv.Start, End: iv.End}
}

// ColorMap maps each logged minute to the color of its state.
type ColorMap map[time.Time]classify.Color

// Shift is the regular working window of a day, as offsets from midnight.
type Shift struct {
	Start time.Duration
	End   time.Duration
}

// DefaultShift is 08:00-17:00.
var DefaultShift = Shift{Start: 8 * time.Hour, End: 17 * time.Hour}

// Window returns the shift on a date.
func (s Shift) Window(date civil.Date, loc *time.Location) Window {
	start := date.In(loc)
	return Window{Start: start.Add(s.Start), End: start.Add(s.End)}
}

// Config configures an Aggregator.
type Config struct {
	Thresholds   classify.Thresholds
	Location     *time.Location
	Shift        Shift
	LatestWindow time.Duration
}

// Aggregator computes reports over the sample log. It holds no state
// besides its configuration and is safe for concurrent use.
type Aggregator struct {
	store        Store
	thresholds   classify.Thresholds
	loc          *time.Location
	shift        Shift
	latestWindow time.Duration
}

// New creates an aggregator over store.
func New(store Store, cfg Config) *Aggregator {
	if cfg.Thresholds == (classify.Thresholds{}) {
		cfg.Thresholds = classify.DefaultThresholds()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Shift == (Shift{}) {
		cfg.Shift = DefaultShift
	}
	if cfg.LatestWindow == 0 {
		cfg.LatestWindow = 5 * time.Minute
	}
	return &Aggregator{
		store:        store,
		thresholds:   cfg.Thresholds,
		loc:          cfg.Location,
		shift:        cfg.Shift,
		latestWindow: cfg.LatestWindow,
	}
}

// Location returns the zone dates are interpreted in.
func (a *Aggregator) Location() *time.Location {
	return a.loc
}

// bounds clips a window to the date: [00:00, next midnight).
func (a *Aggregator) bounds(date civil.Date, w Window) (time.Time, time.Time) {
	start, end := date.In(a.loc), calendar.NextMidnight(date, a.loc)
	if !w.Start.IsZero() && w.Start.After(start) {
		start = w.Start
	}
	if !w.End.IsZero() && w.End.Before(end) {
		end = w.End
	}
	return start, end
}

// replay classifies every valid row of date inside w. Malformed rows are
// skipped one by one. Returns logstore.ErrNotFound if date has no log.
func (a *Aggregator) replay(date civil.Date, w Window, fn func(t time.Time, r classify.Result)) error {
	rows, err := a.store.ReadAll(date)
	if err != nil {
		return err
	}

	start, end := a.bounds(date, w)
	if !start.Before(end) {
		return nil
	}

	skipped := 0
	for _, row := range rows {
		s, err := logstore.ParseSample(date, row, a.loc)
		if err != nil {
			skipped++
			continue
		}
		if s.Time.Before(start) || !s.Time.Before(end) {
			continue
		}
		fn(s.Time, a.thresholds.Classify(s.Red, s.Yellow, s.Green, s.Current))
	}

	if skipped > 0 {
		log.Debug().Str("date", date.String()).Int("skipped", skipped).Msg("Skipped malformed log rows")
	}
	return nil
}

// MinuteColors maps each logged minute of date inside w to its color.
// Stopped minutes are left out unless includeGray is set.
func (a *Aggregator) MinuteColors(date civil.Date, w Window, includeGray bool) (ColorMap, error) {
	colors := make(ColorMap)
	err := a.replay(date, w, func(t time.Time, r classify.Result) {
		if r.Color == classify.Gray && !includeGray {
			return
		}
		colors[t] = r.Color
	})
	if err != nil {
		return nil, err
	}
	return colors, nil
}

// Summarize adds one minute per logged row of date inside w to the row's
// state. A window that misses the day yields a zero summary; a date without
// a log yields logstore.ErrNotFound.
func (a *Aggregator) Summarize(date civil.Date, w Window) (Summary, error) {
	sum := NewSummary()
	err := a.replay(date, w, func(_ time.Time, r classify.Result) {
		sum[r.State] += minute
	})
	if err != nil {
		return nil, err
	}
	return sum, nil
}

// MinuteColorsForIntervals merges the color maps of several intervals,
// gray included. When intervals overlap, the later interval's entry wins.
func (a *Aggregator) MinuteColorsForIntervals(date civil.Date, ivs []interval.Interval) (ColorMap, error) {
	merged := make(ColorMap)
	for _, iv := range ivs {
		colors, err := a.MinuteColors(date, WindowOf(iv), true)
		if err != nil {
			return nil, err
		}
		for t, c := range colors {
			merged[t] = c
		}
	}
	return merged, nil
}

// SummarizeIntervals sums the summaries of several intervals. Each interval
// is counted on its own, so a minute covered by two intervals counts twice.
func (a *Aggregator) SummarizeIntervals(date civil.Date, ivs []interval.Interval) (Summary, error) {
	total := NewSummary()
	for _, iv := range ivs {
		sum, err := a.Summarize(date, WindowOf(iv))
		if err != nil {
			return nil, err
		}
		total.Add(sum)
	}
	return total, nil
}

// Latest is the most recent logged sample with its classification.
type Latest struct {
	Sample logstore.Sample
	Result classify.Result
}

// Latest returns the newest valid row logged within the latest window before
// now, looking into the previous day's log across midnight. Returns
// logstore.ErrNotFound if there is none.
func (a *Aggregator) Latest(now time.Time) (Latest, error) {
	now = now.In(a.loc)
	since := now.Add(-a.latestWindow)

	dates := []civil.Date{civil.DateOf(now)}
	if d := civil.DateOf(since); d != dates[0] {
		dates = append(dates, d)
	}

	for _, date := range dates {
		rows, err := a.store.ReadAll(date)
		if errors.Is(err, logstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return Latest{}, err
		}
		for i := len(rows) - 1; i >= 0; i-- {
			s, err := logstore.ParseSample(date, rows[i], a.loc)
			if err != nil {
				continue
			}
			if s.Time.Before(since) || s.Time.After(now) {
				continue
			}
			return Latest{
				Sample: s,
				Result: a.thresholds.Classify(s.Red, s.Yellow, s.Green, s.Current),
			}, nil
		}
	}
	return Latest{}, fmt.Errorf("no sample since %s: %w", since.Format(time.RFC3339), logstore.ErrNotFound)
}
