package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lampd/internal/acquisition"
	"github.com/dokzlo13/lampd/internal/config"
)

// FlushSource reports the most recent acquisition flush.
type FlushSource interface {
	Enabled() bool
	LastFlush() (acquisition.Flush, bool)
}

// HealthService provides HTTP health check endpoints.
type HealthService struct {
	cfg     *config.Config
	flushes FlushSource
	server  *http.Server
}

// NewHealthService creates a new HealthService.
func NewHealthService(cfg *config.Config, flushes FlushSource) *HealthService {
	return &HealthService{
		cfg:     cfg,
		flushes: flushes,
	}
}

// Start begins the health check server if enabled.
func (s *HealthService) Start(ctx context.Context) {
	if !s.cfg.Healthcheck.Enabled {
		return
	}

	go s.run(ctx)
}

type readyResponse struct {
	Status    string `json:"status"`
	LastFlush string `json:"last_flush,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// Handler returns the health check routes.
func (s *HealthService) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Ready while the last flush, if any, was written
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		resp := readyResponse{Status: "ready"}
		code := http.StatusOK

		if s.flushes.Enabled() {
			if f, ok := s.flushes.LastFlush(); ok {
				resp.LastFlush = f.Time.Format(time.RFC3339)
				if f.Err != nil {
					resp.Status = "degraded"
					resp.LastError = f.Err.Error()
					code = http.StatusServiceUnavailable
				}
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(resp)
	})

	return mux
}

func (s *HealthService) run(ctx context.Context) {
	addr := fmt.Sprintf("%s:%d", s.cfg.Healthcheck.Host, s.cfg.Healthcheck.Port)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("Starting health check server")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Health check server shutdown error")
		}
	}()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("Health check server error")
	}
}
