package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lampd/internal/config"
)

// App owns the service container and the daemon's run context.
type App struct {
	cfg      *config.Config
	services *Services

	ctx    context.Context
	cancel context.CancelCauseFunc

	stopOnce sync.Once
	stopErr  error
}

// New builds every service without starting any of them.
func New(cfg *config.Config) (*App, error) {
	services, err := NewServices(cfg)
	if err != nil {
		return nil, err
	}
	return &App{cfg: cfg, services: services}, nil
}

// Start runs the services under a context derived from ctx. A service that
// cannot keep running cancels that context with its error as the cause.
func (a *App) Start(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancelCause(ctx)

	onFatalError := func(err error) {
		log.Error().Err(err).Msg("Service failed, shutting down")
		a.cancel(err)
	}

	if err := a.services.Start(a.ctx, onFatalError); err != nil {
		a.cancel(err)
		return err
	}

	log.Info().
		Str("data_dir", a.cfg.Data.Dir).
		Bool("acquisition", a.cfg.Acquisition.IsEnabled()).
		Bool("ingest", a.cfg.Ingest.Enabled).
		Bool("mqtt", a.cfg.MQTT.Enabled).
		Msg("lampd started")
	return nil
}

// Wait blocks until the run context ends. It returns the service error that
// ended it, or nil for a signal or Stop.
func (a *App) Wait() error {
	if a.ctx == nil {
		return nil
	}
	<-a.ctx.Done()
	if cause := context.Cause(a.ctx); !errors.Is(cause, context.Canceled) {
		return cause
	}
	return nil
}

// Stop ends the run context and shuts the services down. Later calls
// return the first result.
func (a *App) Stop() error {
	a.stopOnce.Do(func() {
		log.Info().Msg("Stopping lampd")
		if a.cancel != nil {
			a.cancel(nil)
		}
		a.stopErr = a.services.Stop()
	})
	return a.stopErr
}

// SignalContext returns a context that ends on SIGINT or SIGTERM.
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigs
		signal.Stop(sigs)
		log.Warn().Stringer("signal", sig).Msg("Signal received, stopping")
		cancel()
	}()

	return ctx
}
