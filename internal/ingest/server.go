// Package ingest exposes an HTTP endpoint that lamp and current sensor
// bridges post decoded readings to.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/lampd/internal/acquisition"
	"github.com/dokzlo13/lampd/internal/eventbus"
)

const maxBodyBytes = 4 << 10

// Sink receives accepted readings.
type Sink interface {
	UpdateLights(red, yellow, green float64)
	UpdateCurrent(value float64)
	Snapshot() acquisition.Readings
}

// Server is an HTTP server that receives readings and stores them in a Sink.
type Server struct {
	addr       string
	sink       Sink
	bus        *eventbus.Bus
	limiter    *rate.Limiter
	httpServer *http.Server
}

// NewServer creates a new ingest server. bus may be nil.
func NewServer(host string, port int, sink Sink, bus *eventbus.Bus) *Server {
	return &Server{
		addr: fmt.Sprintf("%s:%d", host, port),
		sink: sink,
		bus:  bus,
	}
}

// SetRateLimit caps accepted requests per second. Zero or less removes
// the limit.
func (s *Server) SetRateLimit(rps float64) {
	if rps <= 0 {
		s.limiter = nil
		return
	}
	s.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /lights", s.handleLights)
	mux.HandleFunc("POST /current", s.handleCurrent)
	mux.HandleFunc("GET /readings", s.handleReadings)

	limiter := s.limiter
	if limiter == nil {
		return mux
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			log.Warn().Str("path", r.URL.Path).Msg("Ingest rate limit exceeded")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		mux.ServeHTTP(w, r)
	})
}

// Run starts the ingest server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info().Str("addr", s.addr).Msg("Starting ingest server")

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ingest server shutdown error")
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

type lightsRequest struct {
	Red    *float64 `json:"red"`
	Yellow *float64 `json:"yellow"`
	Green  *float64 `json:"green"`
}

type currentRequest struct {
	Value *float64 `json:"value"`
}

var errMissingField = errors.New("missing field")

func (s *Server) handleLights(w http.ResponseWriter, r *http.Request) {
	var req lightsRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	if req.Red == nil || req.Yellow == nil || req.Green == nil {
		badRequest(w, r, fmt.Errorf("%w: red, yellow and green are required", errMissingField))
		return
	}
	if err := nonNegative(*req.Red, *req.Yellow, *req.Green); err != nil {
		badRequest(w, r, err)
		return
	}

	s.sink.UpdateLights(*req.Red, *req.Yellow, *req.Green)
	s.publish("lights", map[string]interface{}{
		"red":    *req.Red,
		"yellow": *req.Yellow,
		"green":  *req.Green,
	})
	writeOK(w)
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	var req currentRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	if req.Value == nil {
		badRequest(w, r, fmt.Errorf("%w: value", errMissingField))
		return
	}
	if err := nonNegative(*req.Value); err != nil {
		badRequest(w, r, err)
		return
	}

	s.sink.UpdateCurrent(*req.Value)
	s.publish("current", map[string]interface{}{"value": *req.Value})
	writeOK(w)
}

func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.sink.Snapshot())
}

func (s *Server) publish(kind string, data map[string]interface{}) {
	if s.bus == nil {
		return
	}
	data["kind"] = kind
	s.bus.Publish(eventbus.Event{Type: eventbus.EventTypeReading, Data: data})
}

func decode(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}
	defer r.Body.Close()

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func nonNegative(values ...float64) error {
	for _, v := range values {
		if v < 0 {
			return fmt.Errorf("negative reading %v", v)
		}
	}
	return nil
}

func badRequest(w http.ResponseWriter, r *http.Request, err error) {
	log.Debug().Err(err).Str("path", r.URL.Path).Msg("Rejected reading")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
