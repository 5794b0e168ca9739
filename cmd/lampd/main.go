package main

import (
	"flag"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lampd/internal/app"
	"github.com/dokzlo13/lampd/internal/config"
)

func main() {
	// Support both -c and --config for config path
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.StringVar(&configPath, "c", "config.yaml", "Path to configuration file (shorthand)")
	reportDate := flag.String("report", "", "Print the day report of `DATE` (YYYY-MM-DD) as JSON and exit")
	reportMonth := flag.String("month", "", "Print the month report of `MONTH` (YYYY-MM) as JSON and exit")
	itemsDate := flag.String("items", "", "Print the item sheet activity of `DATE` (YYYY-MM-DD) as JSON and exit")
	latest := flag.Bool("latest", false, "Print the most recent reading as JSON and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logging
	setupLogging(cfg.Log.Level, cfg.Log.JSON, cfg.Log.Colors)

	if *reportDate != "" || *reportMonth != "" || *itemsDate != "" || *latest {
		if err := runReport(cfg, *reportDate, *reportMonth, *itemsDate, *latest); err != nil {
			log.Fatal().Err(err).Msg("Report failed")
		}
		return
	}

	log.Info().Str("config", configPath).Msg("Starting lampd")

	// Create application
	application, err := app.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	// Create context that cancels on shutdown signal
	ctx := app.SignalContext()

	// Start the application
	if err := application.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	// Wait for shutdown
	failure := application.Wait()

	// Graceful shutdown
	if err := application.Stop(); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
	}
	if failure != nil {
		os.Exit(1)
	}
}

func runReport(cfg *config.Config, day, month, items string, latest bool) error {
	reports, err := app.NewReports(cfg, os.Stdout)
	if err != nil {
		return err
	}

	switch {
	case day != "":
		date, err := civil.ParseDate(day)
		if err != nil {
			return fmt.Errorf("invalid date %q: %w", day, err)
		}
		return reports.Day(date)
	case month != "":
		return reports.Month(month)
	case items != "":
		date, err := civil.ParseDate(items)
		if err != nil {
			return fmt.Errorf("invalid date %q: %w", items, err)
		}
		return reports.Items(date)
	default:
		return reports.Latest()
	}
}

func setupLogging(level string, useJSON bool, colors bool) {
	// ISO 8601 format with timezone
	zerolog.TimeFieldFormat = time.RFC3339

	if useJSON {
		// JSON output for production
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		// Text output (with optional colors)
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    !colors,
		})
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
