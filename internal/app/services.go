package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lampd/internal/acquisition"
	"github.com/dokzlo13/lampd/internal/aggregate"
	"github.com/dokzlo13/lampd/internal/config"
	"github.com/dokzlo13/lampd/internal/db"
	"github.com/dokzlo13/lampd/internal/eventbus"
	"github.com/dokzlo13/lampd/internal/ledger"
	"github.com/dokzlo13/lampd/internal/logstore"
	"github.com/dokzlo13/lampd/internal/mqtt"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB     *db.DB
	Ledger *ledger.Ledger
	Bus    *eventbus.Bus

	// Data layer
	Store      *logstore.Store
	Sensors    *acquisition.Sensors
	Aggregator *aggregate.Aggregator

	// Optional broker connection
	Publisher mqtt.Publisher

	// High-level services
	Acquisition *AcquisitionService
	Health      *HealthService
	Ingest      *IngestService
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	loc, err := cfg.Data.Location()
	if err != nil {
		return nil, err
	}
	s := &Services{cfg: cfg}

	// Initialize database and ledger
	if cfg.Ledger.IsEnabled() {
		database, err := db.Open(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		s.DB = database
		s.Ledger = ledger.New(database.DB)
		log.Debug().Str("run_id", s.Ledger.RunID()).Msg("Ledger opened")
	}

	s.Bus = eventbus.NewWithConfig(cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())

	s.Store = logstore.New(cfg.Data.Dir)
	s.Sensors = acquisition.NewSensors()

	s.Aggregator, err = NewAggregator(cfg)
	if err != nil {
		s.Close()
		return nil, err
	}

	// Connect to MQTT broker
	if cfg.MQTT.Enabled {
		pub, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			Timeout:  cfg.MQTT.Timeout.Duration(),
		})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
		s.Publisher = pub
	}

	s.Acquisition = NewAcquisitionService(cfg, loc, s.Sensors, s.Store, s.Bus)
	s.Health = NewHealthService(cfg, s.Acquisition)
	s.Ingest = NewIngestService(cfg, s.Sensors, s.Bus)

	return s, nil
}

// NewAggregator builds the read-side aggregator from configuration.
func NewAggregator(cfg *config.Config) (*aggregate.Aggregator, error) {
	loc, err := cfg.Data.Location()
	if err != nil {
		return nil, err
	}
	start, end, err := cfg.Shift.Offsets()
	if err != nil {
		return nil, err
	}
	return aggregate.New(logstore.New(cfg.Data.Dir), aggregate.Config{
		Thresholds:   thresholds(cfg),
		Location:     loc,
		Shift:        aggregate.Shift{Start: start, End: end},
		LatestWindow: cfg.Latest.Window.Duration(),
	}), nil
}

// Start starts all services in the correct order.
// The onFatalError callback is called when a service cannot keep running.
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	// Subscribers first, so the first flush is already observed
	if s.Ledger != nil {
		subscribeLedger(s.Bus, s.Ledger)
		go s.runLedgerCleanup(ctx)
	}
	if s.Publisher != nil {
		subscribeMQTT(s.Bus, s.Publisher)
		if err := s.Publisher.PublishSystem(mqtt.SystemEvent{Timestamp: time.Now(), Event: "STARTUP"}); err != nil {
			log.Warn().Err(err).Msg("Failed to publish startup event")
		}
	}
	s.Bus.Subscribe(eventbus.EventTypeReading, func(e eventbus.Event) {
		log.Debug().Interface("reading", e.Data).Msg("Reading received")
	})

	if err := s.Acquisition.Start(ctx); err != nil {
		return err
	}
	if s.Ledger != nil && s.cfg.Acquisition.IsEnabled() {
		if err := s.Ledger.Append(ledger.EventAcquisitionStarted, map[string]any{"data_dir": s.cfg.Data.Dir}); err != nil {
			log.Warn().Err(err).Msg("Failed to record acquisition start")
		}
	}

	s.Health.Start(ctx)
	s.Ingest.Start(ctx, onFatalError)

	return nil
}

// runLedgerCleanup periodically cleans up old ledger entries.
func (s *Services) runLedgerCleanup(ctx context.Context) {
	retention := s.cfg.Ledger.RetentionPeriod.Duration()
	interval := s.cfg.Ledger.CleanupInterval.Duration()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.Ledger.DeleteOlderThan(retention)
			if err != nil {
				log.Error().Err(err).Msg("Failed to cleanup old ledger entries")
			} else if deleted > 0 {
				log.Info().Int64("deleted", deleted).Dur("retention", retention).Msg("Cleaned up old ledger entries")
			}
		}
	}
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	// No write is in flight after this returns
	s.Acquisition.Stop()

	if s.Ledger != nil && s.cfg.Acquisition.IsEnabled() {
		if err := s.Ledger.Append(ledger.EventAcquisitionStopped, nil); err != nil {
			log.Warn().Err(err).Msg("Failed to record acquisition stop")
		}
	}

	if s.Publisher != nil {
		if err := s.Publisher.PublishSystem(mqtt.SystemEvent{Timestamp: time.Now(), Event: "SHUTDOWN"}); err != nil {
			log.Warn().Err(err).Msg("Failed to publish shutdown event")
		}
	}

	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	// Drain queued flushes before their sinks go away
	if s.Bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		s.Bus.Close(ctx)
		cancel()
	}
	if s.Publisher != nil {
		s.Publisher.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
