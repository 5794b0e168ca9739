package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dokzlo13/lampd/internal/aggregate"
	"github.com/dokzlo13/lampd/internal/config"
	"github.com/dokzlo13/lampd/internal/interval"
	"github.com/dokzlo13/lampd/internal/itemsheet"
	"github.com/dokzlo13/lampd/internal/logstore"
)

// Reports renders one-shot JSON reports from the logs on disk.
type Reports struct {
	cfg *config.Config
	agg *aggregate.Aggregator
	out io.Writer
	now func() time.Time
}

// NewReports creates a report renderer writing to out.
func NewReports(cfg *config.Config, out io.Writer) (*Reports, error) {
	agg, err := NewAggregator(cfg)
	if err != nil {
		return nil, err
	}
	return &Reports{cfg: cfg, agg: agg, out: out, now: time.Now}, nil
}

// Day writes the full-day and shift summaries of date.
func (r *Reports) Day(date civil.Date) error {
	report, err := r.agg.DayReport(date)
	if err != nil {
		return err
	}
	return r.write(report)
}

// Month writes the day reports and totals of a month given as YYYY-MM.
func (r *Reports) Month(month string) error {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return fmt.Errorf("invalid month %q: %w", month, err)
	}
	report, err := r.agg.MonthReport(t.Year(), t.Month())
	if err != nil {
		return err
	}
	return r.write(report)
}

type latestView struct {
	Time    time.Time `json:"time"`
	State   string    `json:"state"`
	Color   string    `json:"color"`
	Red     float64   `json:"red"`
	Yellow  float64   `json:"yellow"`
	Green   float64   `json:"green"`
	Current float64   `json:"current"`
}

// Latest writes the newest reading within the latest window.
func (r *Reports) Latest() error {
	l, err := r.agg.Latest(r.now())
	if err != nil {
		return err
	}
	return r.write(latestView{
		Time:    l.Sample.Time,
		State:   string(l.Result.State),
		Color:   string(l.Result.Color),
		Red:     l.Sample.Red,
		Yellow:  l.Sample.Yellow,
		Green:   l.Sample.Green,
		Current: l.Sample.Current,
	})
}

type itemView struct {
	itemsheet.Item
	Active bool `json:"active"`
	aggregate.ItemReport
}

// Items writes the activity of every item listed in the sheet of date.
// Without a log for date every item gets a zero summary.
func (r *Reports) Items(date civil.Date) error {
	sheet, err := itemsheet.Load(r.cfg.Data.ItemSheetDir, r.cfg.Data.ItemSheetPrefix, date)
	if err != nil {
		return err
	}

	now := r.now()
	ex := interval.NewExtractor(r.agg.Location())
	ex.Now = func() time.Time { return now }

	active := make(map[int]bool)
	for _, a := range itemsheet.CurrentItems(sheet, ex, now) {
		active[a.Item.Index] = true
	}

	views := make([]itemView, 0, len(sheet.Items))
	for _, item := range sheet.Items {
		ivs := ex.FromRow(date, item.Row)
		report, err := r.agg.ItemReport(date, ivs)
		if err != nil && !errors.Is(err, logstore.ErrNotFound) {
			return err
		}
		if err != nil {
			report = aggregate.ItemReport{Intervals: ivs, Label: interval.Label(ivs), Summary: aggregate.NewSummary()}
		}
		views = append(views, itemView{Item: item, Active: active[item.Index], ItemReport: report})
	}
	return r.write(views)
}

func (r *Reports) write(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
