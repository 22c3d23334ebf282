package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/asistentevial/eta-worker/internal/api"
	"github.com/asistentevial/eta-worker/internal/config"
	"github.com/asistentevial/eta-worker/internal/database"
	"github.com/asistentevial/eta-worker/internal/directions"
	"github.com/asistentevial/eta-worker/internal/health"
	"github.com/asistentevial/eta-worker/internal/messaging"
	"github.com/asistentevial/eta-worker/internal/monitoring"
	"github.com/asistentevial/eta-worker/internal/simulator"
	"github.com/asistentevial/eta-worker/internal/telemetry"
	"github.com/asistentevial/eta-worker/internal/tracing"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Initialize structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	log.Info().Msg("Starting asistente vial ETA service")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setLogLevel(cfg.LogLevel)

	log.Info().
		Str("service_name", cfg.ServiceName).
		Str("environment", cfg.Environment).
		Str("http_port", cfg.HTTPPort).
		Str("grpc_port", cfg.GRPCPort).
		Str("route_store", cfg.RouteStore).
		Str("directions_provider", cfg.DirectionsProvider).
		Float64("average_speed_kmh", cfg.AverageSpeedKMH).
		Float64("simulation_speed", cfg.SimulationSpeed).
		Msg("Configuration loaded")

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("Service failed")
	}

	log.Info().Msg("Service shutdown complete")
}

func run(cfg *config.Config) error {
	logger := log.Logger

	shutdownTracing, err := tracing.InitTracer(tracing.Config{
		ServiceName:      cfg.ServiceName,
		ServiceNamespace: "asistente-vial",
		ServiceVersion:   "1.0.0",
		Environment:      cfg.Environment,
		OTLPEndpoint:     cfg.OTELEndpoint,
		Enabled:          cfg.TracingEnabled,
		SampleRatio:      cfg.TracingSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error().Err(err).Msg("Failed to shutdown tracing")
		}
	}()

	store, err := newRouteStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	sink, err := newPositionSink(cfg, logger)
	if err != nil {
		return err
	}
	defer sink.Close()

	manager := monitoring.NewManager(provider, publisher, sink, monitoring.Options{
		AverageSpeedKMH:      cfg.AverageSpeedKMH,
		FallbackStraightLine: cfg.FallbackStraightLine,
		MaxRetries:           cfg.DirectionsMaxRetries,
		MaxSessions:          cfg.MaxSessions,
		Clock:                simulator.ScaledClock{Clock: simulator.RealClock{}, Factor: cfg.SimulationSpeed},
	}, logger.With().Str("component", "monitoring").Logger())

	handler := api.NewHandler(cfg.ServiceName, cfg.AverageSpeedKMH, manager, store, logger.With().Str("component", "api").Logger())
	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	healthServer := health.NewServer(store, logger.With().Str("component", "health").Logger())
	listener, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to create TCP listener: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := healthServer.Serve(listener); err != nil {
			return fmt.Errorf("gRPC server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		healthServer.Watch(gctx, 15*time.Second)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutdown signal received, gracefully stopping...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("HTTP server shutdown failed")
		}
		healthServer.Stop(shutdownCtx)

		if err := manager.Shutdown(10 * time.Second); err != nil {
			logger.Error().Err(err).Msg("Failed to shutdown monitoring sessions")
		}
		return nil
	})

	return g.Wait()
}

func newRouteStore(cfg *config.Config) (database.RouteStore, error) {
	if cfg.RouteStore == "memory" {
		return database.NewMemoryStore(), nil
	}

	client, err := database.NewClient(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.EnsureSchema(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	log.Info().
		Str("db_host", cfg.PostgresHost).
		Str("db_port", cfg.PostgresPort).
		Msg("Database connection established")

	return client, nil
}

func newProvider(cfg *config.Config) (directions.Provider, error) {
	switch cfg.DirectionsProvider {
	case "google":
		return directions.NewGoogleProvider(cfg.GoogleMapsAPIKey, "", cfg.DirectionsTimeout)
	case "straight_line":
		return directions.StraightLineProvider{AverageSpeedKMH: cfg.AverageSpeedKMH}, nil
	default:
		return directions.NewOSRMProvider(cfg.OSRMBaseURL, cfg.DirectionsTimeout), nil
	}
}

func newPublisher(cfg *config.Config, logger zerolog.Logger) (messaging.Publisher, error) {
	if cfg.AMQPURL == "" {
		return messaging.NewLogPublisher(logger), nil
	}

	rmq, err := messaging.NewRabbitMQ(cfg.AMQPURL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return rmq, nil
}

func newPositionSink(cfg *config.Config, logger zerolog.Logger) (telemetry.PositionSink, error) {
	if cfg.MQTTBroker == "" {
		return telemetry.NopSink{}, nil
	}

	clientID := fmt.Sprintf("%s-%s", cfg.ServiceName, uuid.NewString()[:8])
	sink, err := telemetry.NewMQTTSink(cfg.MQTTBroker, clientID, cfg.MQTTTopicPrefix, logger)
	if err != nil {
		return nil, err
	}
	return sink, nil
}

// setLogLevel configures the global log level
func setLogLevel(level string) {
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
	log.Info().Str("level", level).Msg("Log level set")
}
