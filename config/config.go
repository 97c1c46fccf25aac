package config

import (
	"fmt"
	"math"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	// Server
	GatewayPort string // default: 8080
	BackendPort string // default: 9000

	// Upstream
	BackendURL      string        // default: http://localhost:9000
	BackendTimeout  time.Duration // default: 500ms
	BreakerFailures uint32        // consecutive transport failures before opening, 0 disables
	BreakerCooldown time.Duration // default: 10s

	// Observability
	OTELExporterType     string // "stdout", "otlp" or "none"
	OTELExporterEndpoint string // default: "localhost:4317"
	LogLevel             zapcore.Level
	LogFormat            string // "json" or "console"
}

func Load() (*Config, error) {
	// Load .env file if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{
		GatewayPort:          getEnv("GATEWAY_PORT", "8080"),
		BackendPort:          getEnv("BACKEND_PORT", "9000"),
		BackendURL:           getEnv("BACKEND_URL", "http://localhost:9000"),
		OTELExporterType:     getEnv("OTEL_EXPORTER_TYPE", "stdout"),
		OTELExporterEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
		LogFormat:            getEnv("LOG_FORMAT", "json"),
	}

	timeout, err := getEnvSeconds("BACKEND_TIMEOUT_SEC", "0.5")
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("BACKEND_TIMEOUT_SEC must be positive")
	}
	cfg.BackendTimeout = timeout

	failures, err := strconv.ParseUint(getEnv("BACKEND_BREAKER_FAILURES", "5"), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid BACKEND_BREAKER_FAILURES: %w", err)
	}
	cfg.BreakerFailures = uint32(failures)

	cooldown, err := getEnvSeconds("BACKEND_BREAKER_COOLDOWN_SEC", "10")
	if err != nil {
		return nil, err
	}
	if cooldown <= 0 {
		return nil, fmt.Errorf("BACKEND_BREAKER_COOLDOWN_SEC must be positive")
	}
	cfg.BreakerCooldown = cooldown

	level, err := zapcore.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	// Validation
	u, err := url.Parse(cfg.BackendURL)
	if err != nil {
		return nil, fmt.Errorf("invalid BACKEND_URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("BACKEND_URL must be an absolute http(s) URL, got %q", cfg.BackendURL)
	}
	switch cfg.OTELExporterType {
	case "stdout", "otlp", "none":
	default:
		return nil, fmt.Errorf("invalid OTEL_EXPORTER_TYPE %q", cfg.OTELExporterType)
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return nil, fmt.Errorf("invalid LOG_FORMAT %q", cfg.LogFormat)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvSeconds(key, fallback string) (time.Duration, error) {
	secs, err := strconv.ParseFloat(getEnv(key, fallback), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if math.IsNaN(secs) || math.Abs(secs) > math.MaxInt64/float64(time.Second) {
		return 0, fmt.Errorf("invalid %s: %v is out of range", key, secs)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
