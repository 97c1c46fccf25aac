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
	"github.com/vnmchuo/ratelimit-ai/internal/logger"
	"github.com/vnmchuo/ratelimit-ai/internal/metrics"
	"github.com/vnmchuo/ratelimit-ai/internal/sampler"
	"github.com/vnmchuo/ratelimit-ai/internal/simulator"
	"github.com/vnmchuo/ratelimit-ai/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	l, err := logger.New("backend", cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer l.Sync()
	zap.ReplaceGlobals(l)

	shutdownTracer, err := telemetry.InitTracer("ratelimit-ai-backend", cfg, l)
	if err != nil {
		l.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer()

	collector := metrics.NewBackendCollector(l)
	tracer := otel.GetTracerProvider().Tracer("ratelimit-ai-backend")
	handler := simulator.NewHandler(sampler.NewLogNormal(nil), collector, tracer)

	srv := &http.Server{
		Addr:         ":" + cfg.BackendPort,
		Handler:      simulator.NewRouter(handler, collector.Handler(), l),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		l.Info("backend starting", zap.String("port", cfg.BackendPort))
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
