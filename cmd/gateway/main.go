package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/vnmchuo/ratelimit-ai/config"
	"github.com/vnmchuo/ratelimit-ai/internal/estimator"
	"github.com/vnmchuo/ratelimit-ai/internal/logger"
	"github.com/vnmchuo/ratelimit-ai/internal/metrics"
	"github.com/vnmchuo/ratelimit-ai/internal/provider/backend"
	"github.com/vnmchuo/ratelimit-ai/internal/proxy"
	"github.com/vnmchuo/ratelimit-ai/internal/telemetry"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 2. Init logger
	l, err := logger.New("gateway", cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer l.Sync()
	zap.ReplaceGlobals(l)

	// 3. Init telemetry
	shutdownTracer, err := telemetry.InitTracer("ratelimit-ai-gateway", cfg, l)
	if err != nil {
		l.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer()

	// 4. Shared backend client, released on shutdown
	backendClient := backend.New(cfg.BackendURL, cfg.BackendTimeout)
	defer backendClient.Close()
	upstream := proxy.NewBreaker(backendClient, cfg.BreakerFailures, cfg.BreakerCooldown, l)

	// 5. Init handler
	collector := metrics.NewGatewayCollector(l)
	tracer := otel.GetTracerProvider().Tracer("ratelimit-ai-gateway")
	handler := proxy.NewHandler(upstream, estimator.EstimateOutputTokens, collector, tracer)

	// 6. Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.GatewayPort,
		Handler:      proxy.NewRouter(handler, collector.Handler(), l),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		l.Info("gateway starting",
			zap.String("port", cfg.GatewayPort),
			zap.String("backend_url", cfg.BackendURL),
			zap.Duration("backend_timeout", cfg.BackendTimeout),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal("server error", zap.Error(err))
		}
	}()

	<-quit
	l.Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error("forced shutdown", zap.Error(err))
		return
	}
	l.Info("server stopped")
}
