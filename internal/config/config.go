// Package config loads service configuration from environment variables,
// with an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ServiceConfig identifies the running service.
type ServiceConfig struct {
	Name        string
	Version     string
	Environment string
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	Database    string
	SSLMode     string
	MaxConns    int32
	MinConns    int32
	MaxConnTime time.Duration
	MaxIdleTime time.Duration
	HealthCheck time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NATSConfig holds messaging settings. An empty URL disables publishing.
type NATSConfig struct {
	URL string
}

// Config is the top-level service configuration.
type Config struct {
	Service  ServiceConfig
	Database DatabaseConfig
	Server   ServerConfig
	NATS     NATSConfig
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present (never an error when missing).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Service: ServiceConfig{
			Name:        getEnv("SERVICE_NAME", "be-proc-approvals"),
			Version:     getEnv("SERVICE_VERSION", "dev"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Host:        getEnv("DATABASE_HOST", "localhost"),
			Port:        getEnvInt("DATABASE_PORT", 5432),
			User:        getEnv("DATABASE_USER", "postgres"),
			Password:    getEnv("DATABASE_PASSWORD", ""),
			Database:    getEnv("DATABASE_NAME", "proc_approvals"),
			SSLMode:     getEnv("DATABASE_SSLMODE", "disable"),
			MaxConns:    int32(getEnvInt("DATABASE_MAX_CONNS", 10)),
			MinConns:    int32(getEnvInt("DATABASE_MIN_CONNS", 2)),
			MaxConnTime: getEnvDuration("DATABASE_MAX_CONN_TIME", time.Hour),
			MaxIdleTime: getEnvDuration("DATABASE_MAX_IDLE_TIME", 30*time.Minute),
			HealthCheck: getEnvDuration("DATABASE_HEALTH_CHECK", time.Minute),
		},
		Server: ServerConfig{
			Port:            getEnvInt("PORT", 8086),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", ""),
		},
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("invalid PORT: %d", cfg.Server.Port)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
