// Package acquisition turns asynchronously reported sensor readings into one
// logged sample per wall-clock minute.
package acquisition

import (
	"context"
	"errors"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lampd/internal/logstore"
)

// ErrAlreadyRunning is returned by Start when the loop is active.
var ErrAlreadyRunning = errors.New("acquisition already running")

// Appender persists one sample into a date's log.
type Appender interface {
	Append(date civil.Date, sample logstore.Sample) error
}

// Clock is the time source of the loop.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Flush describes one minute-boundary write attempt.
type Flush struct {
	Time     time.Time
	Date     civil.Date
	Readings Readings
	Err      error
}

// Sample returns the flushed readings as a log sample.
func (f Flush) Sample() logstore.Sample {
	return logstore.Sample{
		Time:    f.Time,
		Red:     f.Readings.Red,
		Yellow:  f.Readings.Yellow,
		Green:   f.Readings.Green,
		Current: f.Readings.Current,
	}
}

// Observer is called synchronously after every flush attempt. It must not
// block.
type Observer func(Flush)

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLocation sets the zone used for minute boundaries and dates.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// WithObserver registers a flush observer.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observers = append(s.observers, o) }
}

// Service runs the minute-aligned logging loop.
type Service struct {
	sensors   *Sensors
	store     Appender
	clock     Clock
	loc       *time.Location
	observers []Observer

	mu        sync.Mutex
	stop      chan struct{}
	done      chan struct{}
	lastFlush *Flush
}

// New creates a service that snapshots sensors into store.
func New(sensors *Sensors, store Appender, opts ...Option) *Service {
	s := &Service{
		sensors: sensors,
		store:   store,
		clock:   systemClock{},
		loc:     time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sensors returns the readings record the service snapshots.
func (s *Service) Sensors() *Sensors {
	return s.sensors
}

// Start launches the background loop. The loop ends when ctx is cancelled
// or Stop is called.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		return ErrAlreadyRunning
	}

	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(ctx, s.stop, s.done)
	return nil
}

// Stop signals the loop and blocks until it has exited. No write is in
// flight once Stop returns. Calling Stop on a stopped service is a no-op.
func (s *Service) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if done == nil {
		return
	}
	close(stop)
	<-done
}

// LastFlush returns the most recent flush attempt, if any.
func (s *Service) LastFlush() (Flush, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastFlush == nil {
		return Flush{}, false
	}
	return *s.lastFlush, true
}

func (s *Service) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	log.Info().Str("location", s.loc.String()).Msg("Acquisition started")

	var last time.Time
	for {
		now := s.clock.Now().In(s.loc)
		next := NextBoundary(now)
		if !last.IsZero() && !next.After(last) {
			next = last.Add(time.Minute)
		}

		select {
		case <-stop:
			log.Info().Msg("Acquisition stopped")
			return
		case <-ctx.Done():
			log.Info().Msg("Acquisition stopped")
			return
		case <-s.clock.After(next.Sub(now)):
		}

		s.flush(next)
		last = next
	}
}

func (s *Service) flush(at time.Time) {
	f := Flush{
		Time:     at,
		Date:     civil.DateOf(at),
		Readings: s.sensors.Snapshot(),
	}
	f.Err = s.store.Append(f.Date, f.Sample())

	if f.Err != nil {
		log.Error().Err(f.Err).Str("date", f.Date.String()).Time("minute", at).Msg("Failed to write sample, dropping minute")
	} else {
		log.Debug().
			Str("date", f.Date.String()).
			Time("minute", at).
			Float64("red", f.Readings.Red).
			Float64("yellow", f.Readings.Yellow).
			Float64("green", f.Readings.Green).
			Float64("current", f.Readings.Current).
			Msg("Sample written")
	}

	s.mu.Lock()
	s.lastFlush = &f
	s.mu.Unlock()

	for _, o := range s.observers {
		o(f)
	}
}

// NextBoundary returns the first wall-clock instant after t whose seconds
// are zero.
func NextBoundary(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute()+1, 0, 0, t.Location())
}
