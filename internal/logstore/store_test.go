package logstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dokzlo13/lampd/internal/calendar"
)

var day = civil.Date{Year: 2025, Month: time.August, Day: 4}

func TestAppendAndReadAll(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "sensor"))

	if s.Exists(day) {
		t.Fatal("log should not exist before first write")
	}

	first := Sample{Time: calendar.At(day, 8, 46, 0, time.UTC), Red: 0, Yellow: 12, Green: 512, Current: 3.25}
	second := Sample{Time: calendar.At(day, 8, 47, 0, time.UTC), Red: 230, Yellow: 0, Green: 0, Current: 0}
	if err := s.Append(day, first); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := s.Append(day, second); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if !s.Exists(day) {
		t.Error("log should exist after first write")
	}

	data, err := os.ReadFile(s.Path(day))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	expected := "08:46:00,0,12,512,3.25\n08:47:00,230,0,0,0\n"
	if string(data) != expected {
		t.Errorf("file content = %q, want %q", string(data), expected)
	}

	rows, err := s.ReadAll(day)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	got, err := ParseSample(day, rows[0], time.UTC)
	if err != nil {
		t.Fatalf("ParseSample failed: %v", err)
	}
	if got != first {
		t.Errorf("ParseSample = %+v, want %+v", got, first)
	}
}

func TestReadAllMissingDate(t *testing.T) {
	s := New(t.TempDir())

	rows, err := s.ReadAll(day)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if rows != nil {
		t.Errorf("expected nil rows, got %v", rows)
	}
}

func TestReadAllReturnsMalformedRowsVerbatim(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	content := "08:00:00,1,2,3,4\r\n" +
		"garbage\r\n" +
		"\r\n" +
		"08:02:00,1,x,3,4\r\n" +
		"08:03:00,1,2,3,4\r\n" +
		"08:04:00,1,2"
	if err := os.WriteFile(s.Path(day), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	rows, err := s.ReadAll(day)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	// Blank line dropped, trailing fragment without newline left out.
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d: %v", len(rows), rows)
	}
	if rows[1][0] != "garbage" {
		t.Errorf("expected malformed row to be returned as stored, got %v", rows[1])
	}

	valid := 0
	for _, row := range rows {
		if _, err := ParseSample(day, row, time.UTC); err == nil {
			valid++
		}
	}
	if valid != 2 {
		t.Errorf("expected 2 parseable rows, got %d", valid)
	}
}

func TestConcurrentAppends(t *testing.T) {
	s := New(t.TempDir())
	other := day.AddDays(1)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			if err := s.Append(day, Sample{Time: calendar.At(day, 0, i, 0, time.UTC), Red: float64(i)}); err != nil {
				t.Errorf("Append failed: %v", err)
			}
		}(i)
		go func(i int) {
			defer wg.Done()
			if err := s.Append(other, Sample{Time: calendar.At(other, 0, i, 0, time.UTC), Green: float64(i)}); err != nil {
				t.Errorf("Append failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	for _, d := range []civil.Date{day, other} {
		rows, err := s.ReadAll(d)
		if err != nil {
			t.Fatalf("ReadAll(%s) failed: %v", d, err)
		}
		if len(rows) != 50 {
			t.Errorf("%s: expected 50 rows, got %d", d, len(rows))
		}
		for _, row := range rows {
			if _, err := ParseSample(d, row, time.UTC); err != nil {
				t.Errorf("%s: interleaved or partial row: %v", d, err)
			}
		}
	}
}

func TestDates(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	dates, err := s.Dates()
	if err != nil {
		t.Fatalf("Dates failed: %v", err)
	}
	if len(dates) != 0 {
		t.Errorf("expected no dates, got %v", dates)
	}

	for _, name := range []string{"2025-08-05.csv", "2025-08-04.csv", "notes.txt", "bad.csv", "2025-07-31.csv"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}

	dates, err = s.Dates()
	if err != nil {
		t.Fatalf("Dates failed: %v", err)
	}
	got := fmt.Sprint(dates)
	want := "[2025-07-31 2025-08-04 2025-08-05]"
	if got != want {
		t.Errorf("Dates = %s, want %s", got, want)
	}
}

func TestDatesMissingDirectory(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing"))
	dates, err := s.Dates()
	if err != nil {
		t.Fatalf("Dates failed: %v", err)
	}
	if dates != nil {
		t.Errorf("expected nil, got %v", dates)
	}
}
