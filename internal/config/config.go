package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	ServiceName string
	LogLevel    string
	HTTP        HTTPConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	RabbitMQ    RabbitMQConfig
	MQTT        MQTTConfig
	Token       TokenConfig
	Reading     ReadingConfig
	Diagnostics DiagnosticsConfig
}

// HTTPConfig holds listener settings
type HTTPConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL string
}

// RedisConfig holds token cache settings. An empty Addr disables the cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RabbitMQConfig holds RabbitMQ connection and routing settings
type RabbitMQConfig struct {
	URL                   string
	DiagnosticsExchange   string
	DiagnosticsRoutingKey string
	ReadingsRoutingKey    string
}

// MQTTConfig holds log shipping settings. An empty Broker disables shipping.
type MQTTConfig struct {
	Broker   string
	ClientID string
}

// TokenConfig holds sensor token settings
type TokenConfig struct {
	TTL time.Duration
}

// ReadingConfig holds normalization settings
type ReadingConfig struct {
	DefaultTimezone string
}

// DiagnosticsConfig holds background dispatcher settings
type DiagnosticsConfig struct {
	Buffer int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "energy-metering-ingress"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		HTTP: HTTPConfig{
			Addr:            getEnv("HTTP_ADDR", ":8080"),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		RabbitMQ: RabbitMQConfig{
			URL:                   getEnv("RABBITMQ_URL", ""),
			DiagnosticsExchange:   getEnv("RABBITMQ_DIAGNOSTICS_EXCHANGE", "energy-metering.ingress.events.exchange"),
			DiagnosticsRoutingKey: getEnv("RABBITMQ_DIAGNOSTICS_ROUTING_KEY", "ingress.diagnostic"),
			ReadingsRoutingKey:    getEnv("RABBITMQ_READINGS_ROUTING_KEY", "meter.reading.accepted"),
		},
		MQTT: MQTTConfig{
			Broker:   getEnv("MQTT_BROKER", ""),
			ClientID: getEnv("MQTT_CLIENT_ID", "energy-metering-ingress"),
		},
		Token: TokenConfig{
			TTL: time.Duration(getEnvAsInt("TOKEN_TTL_SECONDS", 3600)) * time.Second,
		},
		Reading: ReadingConfig{
			DefaultTimezone: getEnv("DEFAULT_TIMEZONE", "Europe/Berlin"),
		},
		Diagnostics: DiagnosticsConfig{
			Buffer: getEnvAsInt("DIAGNOSTICS_BUFFER", 256),
		},
	}

	// Validate required fields
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set in environment variables")
	}
	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required but not set in environment variables")
	}
	if cfg.Token.TTL <= 0 {
		return nil, fmt.Errorf("TOKEN_TTL_SECONDS must be positive")
	}
	if _, err := time.LoadLocation(cfg.Reading.DefaultTimezone); err != nil {
		return nil, fmt.Errorf("DEFAULT_TIMEZONE %q is not a known zone: %w", cfg.Reading.DefaultTimezone, err)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
