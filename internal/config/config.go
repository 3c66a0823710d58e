package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ServerConfig holds all configuration values loaded from environment variables.
type ServerConfig struct {
	HTTPAddr           string
	RedisAddr          string
	SQLitePath         string
	JWTSecret          string
	ComputerDelay      time.Duration
	SessionTTL         time.Duration
	SessionIdleTimeout time.Duration
	OTLPEndpoint       string
	StdoutTraces       bool
	EnablePprof        bool
	LogLevel           slog.Level
}

// LoadServerConfig loads configuration from the environment. A .env file in the
// working directory is read first when present; real environment variables win.
func LoadServerConfig() (*ServerConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ServerConfig{
		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		RedisAddr:    getEnv("REDIS_CONNSTRING", "localhost:6379"),
		SQLitePath:   getEnv("SQLITE_PATH", "./master.db"),
		JWTSecret:    getEnv("JWT_SECRET", "your-secret-key"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	var errs []error
	var err error
	if cfg.ComputerDelay, err = getEnvDuration("COMPUTER_DELAY", 500*time.Millisecond); err != nil {
		errs = append(errs, err)
	}
	if cfg.SessionTTL, err = getEnvDuration("SESSION_TTL", 24*time.Hour); err != nil {
		errs = append(errs, err)
	}
	if cfg.SessionIdleTimeout, err = getEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute); err != nil {
		errs = append(errs, err)
	}
	if cfg.StdoutTraces, err = getEnvBool("OTEL_STDOUT_TRACES", false); err != nil {
		errs = append(errs, err)
	}
	if cfg.EnablePprof, err = getEnvBool("PPROF_ENABLED", false); err != nil {
		errs = append(errs, err)
	}
	if cfg.LogLevel, err = ParseLogLevel(os.Getenv("LOG_LEVEL")); err != nil {
		errs = append(errs, fmt.Errorf("environment variable LOG_LEVEL: %w", err))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// ParseLogLevel maps DEBUG, INFO, WARN and ERROR to slog levels. Empty means INFO.
func ParseLogLevel(value string) (slog.Level, error) {
	switch strings.ToUpper(value) {
	case "":
		return slog.LevelInfo, nil
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level %q", value)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("environment variable %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("environment variable %s must be positive, got %s", key, value)
	}
	return d, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("environment variable %s must be \"true\" or \"false\": %w", key, err)
	}
	return b, nil
}
