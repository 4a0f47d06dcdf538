package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/saaga0h/jeeves-nightmode/internal/host"
	"github.com/saaga0h/jeeves-nightmode/internal/nightmode"
	"github.com/saaga0h/jeeves-nightmode/pkg/config"
	"github.com/saaga0h/jeeves-nightmode/pkg/health"
	"github.com/saaga0h/jeeves-nightmode/pkg/mqtt"
	"github.com/saaga0h/jeeves-nightmode/pkg/postgres"
	"github.com/saaga0h/jeeves-nightmode/pkg/redis"
	"github.com/saaga0h/jeeves-nightmode/pkg/usermod"
)

const sunScheduleInterval = time.Hour

func main() {
	// Load configuration with hierarchy: defaults → file → env → flags
	cfg := config.NewConfig()
	if err := cfg.Load(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid timezone", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	logger.Info("Starting J.E.E.V.E.S. Night Mode Agent",
		"version", "1.0",
		"service_name", cfg.ServiceName,
		"strip", cfg.StripID,
		"mqtt_broker", cfg.MQTTAddress(),
		"redis_host", cfg.RedisAddress(),
		"postgres_enabled", cfg.PostgresEnabled,
		"timezone", loc.String(),
		"sun_schedule", cfg.SunSchedule,
		"log_level", cfg.LogLevel)

	// Set up context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	mqttClient := mqtt.NewClient(cfg, logger)
	redisClient := redis.NewClient(cfg, logger)

	// Transition history is optional
	var (
		pgClient postgres.Client
		history  *host.History
	)
	if cfg.PostgresEnabled {
		pgClient = postgres.NewClient(cfg, logger)
		if err := pgClient.Connect(ctx); err != nil {
			logger.Error("Failed to connect to Postgres", "error", err)
			os.Exit(1)
		}
		history = host.NewHistory(pgClient, logger)
		if err := history.EnsureSchema(ctx); err != nil {
			logger.Error("Failed to prepare transition history", "error", err)
			os.Exit(1)
		}
	}

	registry := usermod.NewRegistry()
	if err := registry.Register(nightmode.NewController(logger)); err != nil {
		logger.Error("Failed to register usermod", "error", err)
		os.Exit(1)
	}

	var recorder host.Recorder
	var lister host.TransitionLister
	if history != nil {
		recorder = history
		lister = history
	}

	h := host.New(
		mqttClient,
		redisClient,
		recorder,
		registry,
		host.NewSystemClock(loc),
		host.NewMQTTStrip(mqttClient, cfg.StripID, logger),
		host.Options{
			StripID:                 cfg.StripID,
			TickInterval:            cfg.TickInterval(),
			MaxBrightness:           cfg.MaxBrightness,
			DefaultNormalBrightness: cfg.DefaultNormalBrightness,
		},
		logger,
	)

	// Start health check and API server
	healthChecker := health.NewChecker(mqttClient, redisClient, pgClient, logger)
	httpServer := startHTTPServer(cfg.HealthPort, healthChecker, host.NewAPI(h, lister, logger), logger)

	// Start host in a goroutine
	hostErr := make(chan error, 1)
	go func() {
		if err := h.Start(ctx); err != nil {
			logger.Error("Host error", "error", err)
			hostErr <- err
		}
	}()

	// The sun window must be applied after persisted config is loaded
	if cfg.SunSchedule {
		schedule := nightmode.NewSunSchedule(h, cfg.Latitude, cfg.Longitude, loc, logger)
		go func() {
			select {
			case <-h.Ready():
				schedule.Run(ctx, sunScheduleInterval)
			case <-ctx.Done():
			}
		}()
	}

	// Wait for shutdown signal or host error
	select {
	case <-sigChan:
		logger.Info("Shutdown signal received (SIGTERM/SIGINT)")
	case err := <-hostErr:
		logger.Error("Host failed", "error", err)
	}

	// Graceful shutdown
	logger.Info("Initiating graceful shutdown")
	cancel()

	if err := h.Stop(); err != nil {
		logger.Error("Error stopping host", "error", err)
	}

	if pgClient != nil {
		if err := pgClient.Disconnect(); err != nil {
			logger.Error("Error closing Postgres connection", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down HTTP server", "error", err)
	}

	logger.Info("Night mode agent shutdown complete")
}

func startHTTPServer(port int, checker *health.Checker, api *host.API, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", checker.HandlerFunc())
	mux.HandleFunc("/health/detailed", checker.DetailedHandlerFunc())
	api.Register(mux)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		logger.Info("Starting HTTP server", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	return server
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
