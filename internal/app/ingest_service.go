package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lampd/internal/config"
	"github.com/dokzlo13/lampd/internal/eventbus"
	"github.com/dokzlo13/lampd/internal/ingest"
)

// IngestService wraps the reading ingest HTTP server.
type IngestService struct {
	cfg    *config.Config
	server *ingest.Server
}

// NewIngestService creates a new IngestService.
func NewIngestService(cfg *config.Config, sink ingest.Sink, bus *eventbus.Bus) *IngestService {
	server := ingest.NewServer(cfg.Ingest.Host, cfg.Ingest.Port, sink, bus)
	server.SetRateLimit(cfg.Ingest.RateLimitRPS)
	return &IngestService{
		cfg:    cfg,
		server: server,
	}
}

// Start begins the ingest server if enabled. Without it no reading ever
// reaches the loop, so a listen failure is fatal.
func (s *IngestService) Start(ctx context.Context, onFatalError func(error)) {
	if !s.cfg.Ingest.Enabled {
		log.Debug().Msg("Ingest server disabled")
		return
	}

	go func() {
		if err := s.server.Run(ctx, s.cfg.ShutdownTimeout.Duration()); err != nil {
			onFatalError(fmt.Errorf("ingest server: %w", err))
		}
	}()
}
