package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lampd/internal/acquisition"
	"github.com/dokzlo13/lampd/internal/classify"
	"github.com/dokzlo13/lampd/internal/config"
	"github.com/dokzlo13/lampd/internal/eventbus"
	"github.com/dokzlo13/lampd/internal/ledger"
	"github.com/dokzlo13/lampd/internal/mqtt"
)

// Keys of a sample event's Data.
const (
	keyFlush  = "flush"
	keyResult = "result"
)

// AcquisitionService runs the minute loop and announces every flush on the bus.
type AcquisitionService struct {
	cfg     *config.Config
	service *acquisition.Service
}

// NewAcquisitionService creates a new AcquisitionService.
func NewAcquisitionService(cfg *config.Config, loc *time.Location, sensors *acquisition.Sensors, store acquisition.Appender, bus *eventbus.Bus) *AcquisitionService {
	th := thresholds(cfg)
	observer := func(f acquisition.Flush) {
		bus.Publish(sampleEvent(f, th))
	}

	return &AcquisitionService{
		cfg: cfg,
		service: acquisition.New(sensors, store,
			acquisition.WithLocation(loc),
			acquisition.WithObserver(observer),
		),
	}
}

// Start begins the minute loop if enabled.
func (s *AcquisitionService) Start(ctx context.Context) error {
	if !s.cfg.Acquisition.IsEnabled() {
		log.Info().Msg("Acquisition disabled")
		return nil
	}
	return s.service.Start(ctx)
}

// Stop ends the minute loop and waits for it to exit.
func (s *AcquisitionService) Stop() {
	s.service.Stop()
}

// Enabled reports whether the loop is configured to run.
func (s *AcquisitionService) Enabled() bool {
	return s.cfg.Acquisition.IsEnabled()
}

// LastFlush returns the most recent flush attempt, if any.
func (s *AcquisitionService) LastFlush() (acquisition.Flush, bool) {
	return s.service.LastFlush()
}

func thresholds(cfg *config.Config) classify.Thresholds {
	return classify.Thresholds{
		Red:     cfg.Thresholds.Red,
		Yellow:  cfg.Thresholds.Yellow,
		Green:   cfg.Thresholds.Green,
		Current: cfg.Thresholds.Current,
	}
}

func sampleEvent(f acquisition.Flush, th classify.Thresholds) eventbus.Event {
	r := f.Readings
	return eventbus.Event{
		Type: eventbus.EventTypeSample,
		Data: map[string]interface{}{
			keyFlush:  f,
			keyResult: th.Classify(r.Red, r.Yellow, r.Green, r.Current),
		},
	}
}

func unpackSample(e eventbus.Event) (acquisition.Flush, classify.Result, bool) {
	f, ok := e.Data[keyFlush].(acquisition.Flush)
	if !ok {
		return acquisition.Flush{}, classify.Result{}, false
	}
	res, ok := e.Data[keyResult].(classify.Result)
	return f, res, ok
}

// subscribeLedger records every flush as sample_written or sample_failed.
func subscribeLedger(bus *eventbus.Bus, l *ledger.Ledger) {
	bus.Subscribe(eventbus.EventTypeSample, func(e eventbus.Event) {
		f, res, ok := unpackSample(e)
		if !ok {
			return
		}

		payload := map[string]any{
			"minute": f.Time.Format(time.RFC3339),
			"state":  string(res.State),
		}
		eventType := ledger.EventSampleWritten
		if f.Err != nil {
			eventType = ledger.EventSampleFailed
			payload["error"] = f.Err.Error()
		}

		if err := l.AppendForDate(eventType, f.Date, payload); err != nil {
			log.Error().Err(err).Str("event_type", string(eventType)).Msg("Failed to append ledger entry")
		}
	})
}

// subscribeMQTT publishes every written minute to the broker.
func subscribeMQTT(bus *eventbus.Bus, pub mqtt.Publisher) {
	bus.Subscribe(eventbus.EventTypeSample, func(e eventbus.Event) {
		f, res, ok := unpackSample(e)
		if !ok || f.Err != nil {
			return
		}

		err := pub.Publish(mqtt.MinuteEvent{
			Timestamp: f.Time,
			State:     res.State,
			Color:     res.Color,
			Red:       f.Readings.Red,
			Yellow:    f.Readings.Yellow,
			Green:     f.Readings.Green,
			Current:   f.Readings.Current,
		})
		if err != nil {
			log.Warn().Err(err).Time("minute", f.Time).Msg("Failed to publish minute to MQTT")
		}
	})
}
