package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.GatewayPort)
	assert.Equal(t, "9000", cfg.BackendPort)
	assert.Equal(t, "http://localhost:9000", cfg.BackendURL)
	assert.Equal(t, 500*time.Millisecond, cfg.BackendTimeout)
	assert.Equal(t, uint32(5), cfg.BreakerFailures)
	assert.Equal(t, 10*time.Second, cfg.BreakerCooldown)
	assert.Equal(t, "stdout", cfg.OTELExporterType)
	assert.Equal(t, zapcore.InfoLevel, cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("BACKEND_URL", "http://backend:9100")
	t.Setenv("BACKEND_TIMEOUT_SEC", "1.25")
	t.Setenv("BACKEND_BREAKER_FAILURES", "0")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("OTEL_EXPORTER_TYPE", "none")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://backend:9100", cfg.BackendURL)
	assert.Equal(t, 1250*time.Millisecond, cfg.BackendTimeout)
	assert.Equal(t, uint32(0), cfg.BreakerFailures)
	assert.Equal(t, zapcore.DebugLevel, cfg.LogLevel)
	assert.Equal(t, "none", cfg.OTELExporterType)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"non-numeric timeout", "BACKEND_TIMEOUT_SEC", "fast"},
		{"zero timeout", "BACKEND_TIMEOUT_SEC", "0"},
		{"NaN timeout", "BACKEND_TIMEOUT_SEC", "NaN"},
		{"infinite timeout", "BACKEND_TIMEOUT_SEC", "+Inf"},
		{"overflowing timeout", "BACKEND_TIMEOUT_SEC", "1e300"},
		{"NaN cooldown", "BACKEND_BREAKER_COOLDOWN_SEC", "NaN"},
		{"relative url", "BACKEND_URL", "backend:9000"},
		{"negative breaker", "BACKEND_BREAKER_FAILURES", "-1"},
		{"bad log level", "LOG_LEVEL", "loud"},
		{"bad exporter", "OTEL_EXPORTER_TYPE", "jaeger"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
