package aggregate

import (
	"errors"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dokzlo13/lampd/internal/calendar"
	"github.com/dokzlo13/lampd/internal/classify"
	"github.com/dokzlo13/lampd/internal/interval"
	"github.com/dokzlo13/lampd/internal/logstore"
)

var day = civil.Date{Year: 2025, Month: time.August, Day: 4}

func at(h, m int) time.Time {
	return calendar.At(day, h, m, 0, time.UTC)
}

// Row values for each state with default thresholds.
const (
	rowStopped  = "0,0,0,0"
	rowAuto     = "0,0,512,0"
	rowManual   = "0,0,0,4.2"
	rowComplete = "0,512,0,0"
	rowAlarm    = "512,0,0,0"
)

func writeLog(t *testing.T, store *logstore.Store, date civil.Date, lines ...string) {
	t.Helper()
	content := strings.Join(lines, "\n") + "\n"
	if err := os.MkdirAll(store.Dir(), 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(store.Path(date), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func newTestAggregator(t *testing.T) (*Aggregator, *logstore.Store) {
	t.Helper()
	store := logstore.New(t.TempDir())
	return New(store, Config{Location: time.UTC}), store
}

func TestSummarizeFullDayCountsEveryValidRow(t *testing.T) {
	agg, store := newTestAggregator(t)
	writeLog(t, store, day,
		"08:00:00,"+rowAuto,
		"08:01:00,"+rowAuto,
		"08:02:00,"+rowManual,
		"08:03:00,"+rowComplete,
		"08:04:00,"+rowAlarm,
		"08:05:00,"+rowStopped,
		"08:06:00,"+rowStopped,
		"broken",
		"08:08:00,1,2,three,4",
		"25:00:00,"+rowAuto,
	)

	sum, err := agg.Summarize(day, Window{})
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}

	if sum.Total() != 7*time.Minute {
		t.Errorf("Total = %v, want 7m", sum.Total())
	}
	expected := map[classify.State]time.Duration{
		classify.AutoProcessing:   2 * time.Minute,
		classify.ManualProcessing: time.Minute,
		classify.ProcessComplete:  time.Minute,
		classify.Alarm:            time.Minute,
		classify.Stopped:          2 * time.Minute,
	}
	for st, d := range expected {
		if sum[st] != d {
			t.Errorf("%s = %v, want %v", st, sum[st], d)
		}
	}
	if len(sum) != len(classify.States) {
		t.Errorf("summary has %d states, want %d", len(sum), len(classify.States))
	}
}

func TestSummarizeAbsentVersusOutsideWindow(t *testing.T) {
	agg, store := newTestAggregator(t)

	if _, err := agg.Summarize(day, Window{}); !errors.Is(err, logstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing log, got %v", err)
	}

	writeLog(t, store, day, "08:00:00,"+rowAuto)

	next := day.AddDays(1)
	w := Window{Start: calendar.At(next, 8, 0, 0, time.UTC), End: calendar.At(next, 9, 0, 0, time.UTC)}
	sum, err := agg.Summarize(day, w)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if sum == nil || sum.Total() != 0 {
		t.Errorf("expected zero-filled summary, got %v", sum)
	}
	for _, st := range classify.States {
		if _, ok := sum[st]; !ok {
			t.Errorf("state %s missing from zero summary", st)
		}
	}
}

func TestSummarizeWindowIsHalfOpen(t *testing.T) {
	agg, store := newTestAggregator(t)
	writeLog(t, store, day,
		"07:59:00,"+rowAuto,
		"08:00:00,"+rowAuto,
		"08:59:00,"+rowManual,
		"09:00:00,"+rowManual,
	)

	sum, err := agg.Summarize(day, Window{Start: at(8, 0), End: at(9, 0)})
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if sum[classify.AutoProcessing] != time.Minute || sum[classify.ManualProcessing] != time.Minute {
		t.Errorf("unexpected summary: %v", sum)
	}
}

func TestMinuteColors(t *testing.T) {
	agg, store := newTestAggregator(t)
	writeLog(t, store, day,
		"08:00:00,"+rowAuto,
		"08:01:00,"+rowStopped,
		"08:02:00,"+rowAlarm,
		"08:03:00,x,0,0,0",
	)

	colors, err := agg.MinuteColors(day, Window{}, true)
	if err != nil {
		t.Fatalf("MinuteColors failed: %v", err)
	}
	expected := ColorMap{
		at(8, 0): classify.Green,
		at(8, 1): classify.Gray,
		at(8, 2): classify.Red,
	}
	if !reflect.DeepEqual(colors, expected) {
		t.Errorf("MinuteColors = %v, want %v", colors, expected)
	}

	noGray, err := agg.MinuteColors(day, Window{}, false)
	if err != nil {
		t.Fatalf("MinuteColors failed: %v", err)
	}
	if _, ok := noGray[at(8, 1)]; ok {
		t.Error("gray minute should be dropped")
	}
	if len(noGray) != 2 {
		t.Errorf("expected 2 minutes, got %d", len(noGray))
	}

	again, err := agg.MinuteColors(day, Window{}, true)
	if err != nil {
		t.Fatalf("MinuteColors failed: %v", err)
	}
	if !reflect.DeepEqual(colors, again) {
		t.Error("repeated MinuteColors call returned a different map")
	}
}

func TestMinuteColorsMissingLog(t *testing.T) {
	agg, _ := newTestAggregator(t)
	colors, err := agg.MinuteColors(day, Window{}, true)
	if !errors.Is(err, logstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if colors != nil {
		t.Errorf("expected nil map, got %v", colors)
	}
}

func TestOverlappingIntervalsDiverge(t *testing.T) {
	agg, store := newTestAggregator(t)
	writeLog(t, store, day,
		"08:00:00,"+rowAuto,
		"08:01:00,"+rowAuto,
		"08:02:00,"+rowManual,
		"08:03:00,"+rowManual,
	)

	ivs := []interval.Interval{
		{Start: at(8, 0), End: at(8, 3)},
		{Start: at(8, 1), End: at(8, 4)},
	}

	// Durations count the shared minutes 08:01 and 08:02 twice.
	sum, err := agg.SummarizeIntervals(day, ivs)
	if err != nil {
		t.Fatalf("SummarizeIntervals failed: %v", err)
	}
	if sum.Total() != 6*time.Minute {
		t.Errorf("Total = %v, want 6m", sum.Total())
	}
	if sum[classify.AutoProcessing] != 3*time.Minute || sum[classify.ManualProcessing] != 3*time.Minute {
		t.Errorf("unexpected summary: %v", sum)
	}

	// The color map keeps each minute once.
	colors, err := agg.MinuteColorsForIntervals(day, ivs)
	if err != nil {
		t.Fatalf("MinuteColorsForIntervals failed: %v", err)
	}
	if len(colors) != 4 {
		t.Errorf("expected 4 minutes, got %d", len(colors))
	}
}

func TestMultiIntervalEmptyAndAbsent(t *testing.T) {
	agg, _ := newTestAggregator(t)

	sum, err := agg.SummarizeIntervals(day, nil)
	if err != nil {
		t.Fatalf("SummarizeIntervals failed: %v", err)
	}
	if sum.Total() != 0 || len(sum) != len(classify.States) {
		t.Errorf("expected zero-filled summary, got %v", sum)
	}

	ivs := []interval.Interval{{Start: at(8, 0), End: at(9, 0)}}
	if _, err := agg.SummarizeIntervals(day, ivs); !errors.Is(err, logstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := agg.MinuteColorsForIntervals(day, ivs); !errors.Is(err, logstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLatest(t *testing.T) {
	agg, store := newTestAggregator(t)
	writeLog(t, store, day,
		"08:55:00,"+rowAuto,
		"08:58:00,"+rowAlarm,
		"08:59:00,bad,0,0,0",
		"09:10:00,"+rowManual,
	)

	got, err := agg.Latest(calendar.At(day, 9, 1, 30, time.UTC))
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if !got.Sample.Time.Equal(at(8, 58)) {
		t.Errorf("Latest time = %v, want 08:58", got.Sample.Time)
	}
	if got.Result.State != classify.Alarm {
		t.Errorf("Latest state = %s, want %s", got.Result.State, classify.Alarm)
	}

	if _, err := agg.Latest(calendar.At(day, 12, 0, 0, time.UTC)); !errors.Is(err, logstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound for stale log, got %v", err)
	}
}

func TestLatestAcrossMidnight(t *testing.T) {
	agg, store := newTestAggregator(t)
	writeLog(t, store, day, "23:58:00,"+rowComplete)

	got, err := agg.Latest(calendar.At(day.AddDays(1), 0, 1, 0, time.UTC))
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if got.Result.State != classify.ProcessComplete {
		t.Errorf("Latest state = %s, want %s", got.Result.State, classify.ProcessComplete)
	}
}

func TestCustomThresholds(t *testing.T) {
	store := logstore.New(t.TempDir())
	agg := New(store, Config{
		Location:   time.UTC,
		Thresholds: classify.Thresholds{Red: 1000, Yellow: 1000, Green: 1000, Current: 10},
	})
	writeLog(t, store, day, "08:00:00,"+rowAuto, "08:01:00,"+rowManual)

	sum, err := agg.Summarize(day, Window{})
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if sum[classify.Stopped] != 2*time.Minute {
		t.Errorf("expected both minutes stopped under high thresholds, got %v", sum)
	}
}
