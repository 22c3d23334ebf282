// Package config provides application configuration management,
// loading settings from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Service configuration
	ServiceName string
	Environment string
	GRPCPort    string
	HTTPPort    string

	// Saved route storage: "memory" or "postgres"
	RouteStore string

	// Database configuration
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string

	// Route ETA
	AverageSpeedKMH float64

	// Directions provider: "osrm", "google" or "straight_line"
	DirectionsProvider   string
	OSRMBaseURL          string
	GoogleMapsAPIKey     string
	DirectionsTimeout    time.Duration
	DirectionsMaxRetries int
	FallbackStraightLine bool

	// Monitoring sessions
	MaxSessions     int
	SimulationSpeed float64

	// Messaging and telemetry (empty disables)
	AMQPURL         string
	MQTTBroker      string
	MQTTTopicPrefix string

	// OpenTelemetry configuration
	OTELEndpoint       string
	TracingEnabled     bool
	TracingSampleRatio float64

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "asistente-vial-eta"),
		Environment: getEnv("ENVIRONMENT", "development"),
		GRPCPort:    getEnv("GRPC_PORT", "50051"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),

		RouteStore: getEnv("ROUTE_STORE", "memory"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "asistente_vial"),
		PostgresUser:     getEnv("POSTGRES_USER", "development"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "development"),

		DirectionsProvider: getEnv("DIRECTIONS_PROVIDER", "osrm"),
		OSRMBaseURL:        getEnv("OSRM_BASE_URL", "https://router.project-osrm.org"),
		GoogleMapsAPIKey:   getEnv("GOOGLE_MAPS_API_KEY", ""),

		AMQPURL:         getEnv("AMQP_URL", ""),
		MQTTBroker:      getEnv("MQTT_BROKER", ""),
		MQTTTopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "asistente-vial"),

		OTELEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
	}

	var err error
	cfg.AverageSpeedKMH, err = parseFloat("AVERAGE_SPEED_KMH", "60")
	if err != nil {
		return nil, fmt.Errorf("invalid AVERAGE_SPEED_KMH: %w", err)
	}
	if cfg.AverageSpeedKMH <= 0 {
		return nil, fmt.Errorf("invalid AVERAGE_SPEED_KMH: must be positive, got %v", cfg.AverageSpeedKMH)
	}

	cfg.SimulationSpeed, err = parseFloat("SIMULATION_SPEED", "1")
	if err != nil {
		return nil, fmt.Errorf("invalid SIMULATION_SPEED: %w", err)
	}

	cfg.DirectionsTimeout, err = time.ParseDuration(getEnv("DIRECTIONS_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid DIRECTIONS_TIMEOUT: %w", err)
	}

	cfg.DirectionsMaxRetries, err = parseInt("DIRECTIONS_MAX_RETRIES", "3")
	if err != nil {
		return nil, fmt.Errorf("invalid DIRECTIONS_MAX_RETRIES: %w", err)
	}

	cfg.MaxSessions, err = parseInt("MAX_SESSIONS", "100")
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_SESSIONS: %w", err)
	}

	cfg.FallbackStraightLine, err = parseBool("FALLBACK_STRAIGHT_LINE", "false")
	if err != nil {
		return nil, fmt.Errorf("invalid FALLBACK_STRAIGHT_LINE: %w", err)
	}

	cfg.TracingEnabled, err = parseBool("TRACING_ENABLED", "false")
	if err != nil {
		return nil, fmt.Errorf("invalid TRACING_ENABLED: %w", err)
	}

	cfg.TracingSampleRatio, err = parseFloat("TRACING_SAMPLE_RATIO", "1")
	if err != nil {
		return nil, fmt.Errorf("invalid TRACING_SAMPLE_RATIO: %w", err)
	}

	switch cfg.DirectionsProvider {
	case "osrm", "straight_line":
	case "google":
		if cfg.GoogleMapsAPIKey == "" {
			return nil, fmt.Errorf("GOOGLE_MAPS_API_KEY is required for the google directions provider")
		}
	default:
		return nil, fmt.Errorf("invalid DIRECTIONS_PROVIDER: %q", cfg.DirectionsProvider)
	}

	switch cfg.RouteStore {
	case "memory", "postgres":
	default:
		return nil, fmt.Errorf("invalid ROUTE_STORE: %q", cfg.RouteStore)
	}

	return cfg, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s dbname=%s user=%s password=%s sslmode=disable",
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresDB,
		c.PostgresUser,
		c.PostgresPassword,
	)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseFloat parses a float64 from an environment variable or default value
func parseFloat(key, defaultValue string) (float64, error) {
	value := getEnv(key, defaultValue)
	return strconv.ParseFloat(value, 64)
}

func parseInt(key, defaultValue string) (int, error) {
	return strconv.Atoi(getEnv(key, defaultValue))
}

func parseBool(key, defaultValue string) (bool, error) {
	return strconv.ParseBool(getEnv(key, defaultValue))
}
