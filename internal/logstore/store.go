// Package logstore persists minute samples as one append-only CSV file per
// calendar date.
//
// Each line has the form HH:MM:SS,red,yellow,green,current. The store does
// not validate what it reads back; callers parse rows with ParseSample and
// skip the ones that fail.
package logstore

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"cloud.google.com/go/civil"
)

// ErrNotFound is returned when no log exists for the requested date.
var ErrNotFound = errors.New("no log for date")

const fileExt = ".csv"

// Row is one stored line split into its raw fields.
type Row []string

// Store is a directory of daily sample logs.
type Store struct {
	dir string

	mu    sync.Mutex
	locks map[civil.Date]*sync.Mutex
}

// New creates a store rooted at dir. The directory is created on first write.
func New(dir string) *Store {
	return &Store{
		dir:   dir,
		locks: make(map[civil.Date]*sync.Mutex),
	}
}

// Dir returns the directory holding the daily files.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file path of the given date's log.
func (s *Store) Path(date civil.Date) string {
	return filepath.Join(s.dir, date.String()+fileExt)
}

// lockFor returns the append mutex of a date. Appends to different dates do
// not contend with each other.
func (s *Store) lockFor(date civil.Date) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[date]
	if !ok {
		l = &sync.Mutex{}
		s.locks[date] = l
	}
	return l
}

// Append writes one sample to the date's log, creating the file if needed.
// The whole line goes out in a single write on an O_APPEND descriptor.
func (s *Store) Append(date civil.Date, sample Sample) error {
	l := s.lockFor(date)
	l.Lock()
	defer l.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(s.Path(date), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log %s: %w", date, err)
	}

	if _, err := f.Write([]byte(FormatRow(sample))); err != nil {
		f.Close()
		return fmt.Errorf("failed to append to log %s: %w", date, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close log %s: %w", date, err)
	}
	return nil
}

// Exists reports whether a log has been created for the date.
func (s *Store) Exists(date civil.Date) bool {
	info, err := os.Stat(s.Path(date))
	return err == nil && !info.IsDir()
}

// ReadAll returns every complete line of the date's log as raw fields, in
// file order. A trailing fragment without a newline is a write in progress
// and is left out. Returns ErrNotFound if the date has no log.
func (s *Store) ReadAll(date civil.Date) ([]Row, error) {
	data, err := os.ReadFile(s.Path(date))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", date, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read log %s: %w", date, err)
	}

	if i := bytes.LastIndexByte(data, '\n'); i >= 0 {
		data = data[:i+1]
	} else {
		data = nil
	}

	var rows []Row
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		rows = append(rows, Row(strings.Split(line, ",")))
	}
	return rows, nil
}

// Dates lists the dates that have a log, ascending. Files whose names are
// not YYYY-MM-DD.csv are ignored. A missing directory yields no dates.
func (s *Store) Dates() ([]civil.Date, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list log directory: %w", err)
	}

	var dates []civil.Date
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		d, err := civil.ParseDate(strings.TrimSuffix(name, fileExt))
		if err != nil {
			continue
		}
		dates = append(dates, d)
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}
