// Package interval recovers work intervals from the start/stop timestamps
// people type into the item sheet.
package interval

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dokzlo13/lampd/internal/calendar"
)

var (
	// ErrMissingStart is returned by Resolve when the start field is empty
	// or unparsable.
	ErrMissingStart = errors.New("interval start is required")

	// ErrEmptyInterval is returned by Resolve when nothing of the interval
	// falls on the requested date.
	ErrEmptyInterval = errors.New("interval does not overlap the date")
)

// Item sheet layout: start1 in column 9, stop1 in column 10, up to five pairs.
const (
	DefaultFirstColumn = 9
	DefaultMaxPairs    = 5
)

// Interval is a half-open window [Start, End) within one calendar day.
// Open is set when the stop was missing and End is the extraction instant.
type Interval struct {
	Start time.Time
	End   time.Time
	Open  bool
}

// Duration returns End - Start.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Contains reports whether t lies in [Start, End).
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// String renders the interval as HH:MM-HH:MM.
func (iv Interval) String() string {
	return iv.Start.Format("15:04") + "-" + iv.End.Format("15:04")
}

// Label joins intervals as "HH:MM-HH:MM / HH:MM-HH:MM".
func Label(ivs []Interval) string {
	parts := make([]string, len(ivs))
	for i, iv := range ivs {
		parts[i] = iv.String()
	}
	return strings.Join(parts, " / ")
}

// Pair is one raw (start, stop) field pair.
type Pair struct {
	Start string
	Stop  string
}

// Extractor turns raw pairs into day-clipped intervals.
type Extractor struct {
	Location    *time.Location
	Now         func() time.Time
	FirstColumn int
	MaxPairs    int
}

// NewExtractor creates an extractor using the item sheet layout.
func NewExtractor(loc *time.Location) *Extractor {
	return &Extractor{
		Location:    loc,
		Now:         time.Now,
		FirstColumn: DefaultFirstColumn,
		MaxPairs:    DefaultMaxPairs,
	}
}

// PairsFromRow picks the (start, stop) columns out of an item sheet row.
// Scanning ends at the first pair whose start column is missing.
func (e *Extractor) PairsFromRow(row []string) []Pair {
	var pairs []Pair
	for i := 0; i < e.MaxPairs; i++ {
		si := e.FirstColumn + 2*i
		if len(row) <= si {
			break
		}
		p := Pair{Start: row[si]}
		if len(row) > si+1 {
			p.Stop = row[si+1]
		}
		pairs = append(pairs, p)
	}
	return pairs
}

// FromRow extracts the intervals of one item sheet row.
func (e *Extractor) FromRow(date civil.Date, row []string) []Interval {
	return e.FromPairs(date, e.PairsFromRow(row))
}

// FromPairs extracts intervals on date, sorted by start. Pairs with an empty
// or unparsable start are skipped silently.
func (e *Extractor) FromPairs(date civil.Date, pairs []Pair) []Interval {
	now := e.Now().In(e.Location)

	var out []Interval
	for _, p := range pairs {
		startRaw := strings.TrimSpace(p.Start)
		if startRaw == "" {
			continue
		}
		start, err := ParseFlexible(startRaw, e.Location)
		if err != nil {
			continue
		}
		if iv, ok := e.complete(date, start, p.Stop, now); ok {
			out = append(out, iv)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// Resolve builds the single interval of one start/stop pair. Unlike
// FromPairs, a missing or unparsable start is an error.
func (e *Extractor) Resolve(date civil.Date, startRaw, stopRaw string) (Interval, error) {
	startRaw = strings.TrimSpace(startRaw)
	if startRaw == "" {
		return Interval{}, ErrMissingStart
	}
	start, err := ParseFlexible(startRaw, e.Location)
	if err != nil {
		return Interval{}, fmt.Errorf("%w: %w", ErrMissingStart, err)
	}

	iv, ok := e.complete(date, start, stopRaw, e.Now().In(e.Location))
	if !ok {
		return Interval{}, fmt.Errorf("%s on %s: %w", startRaw, date, ErrEmptyInterval)
	}
	return iv, nil
}

// complete fills in the stop time, clips both ends to the day and forces a
// one-minute interval when stop is not after start.
func (e *Extractor) complete(date civil.Date, start time.Time, stopRaw string, now time.Time) (Interval, bool) {
	dayStart := date.In(e.Location)
	dayEnd := calendar.DayEnd(date, e.Location)

	var stop time.Time
	haveStop := false
	if s := strings.TrimSpace(stopRaw); s != "" {
		if t, err := ParseFlexible(s, e.Location); err == nil {
			stop, haveStop = t, true
		}
	}
	open := false
	if !haveStop {
		stop = dayEnd
		if civil.DateOf(now) == date {
			stop = earliest(now, dayEnd)
			open = true
		}
	}

	start = clamp(start, dayStart, dayEnd)
	stop = clamp(stop, dayStart, dayEnd)

	if !stop.After(start) {
		stop = earliest(start.Add(time.Minute), dayEnd)
	}

	if !start.Before(stop) {
		return Interval{}, false
	}
	return Interval{Start: start, End: stop, Open: open && stop.Equal(now)}, true
}

func clamp(t, lo, hi time.Time) time.Time {
	if t.Before(lo) {
		return lo
	}
	if t.After(hi) {
		return hi
	}
	return t
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
