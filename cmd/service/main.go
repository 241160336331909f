package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-record-service/internal/config"
	"github.com/kjstillabower/weather-record-service/internal/handler"
	httphandler "github.com/kjstillabower/weather-record-service/internal/http"
	"github.com/kjstillabower/weather-record-service/internal/lifecycle"
	"github.com/kjstillabower/weather-record-service/internal/observability"
	"github.com/kjstillabower/weather-record-service/internal/store"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	weatherStore, err := store.Open(cfg.StoreOptions(), logger)
	if err != nil {
		logger.Fatal("store", zap.Error(err))
	}
	logger.Info("store backend", zap.String("backend", cfg.StoreBackend))

	healthConfig := &httphandler.HealthConfig{
		OverloadWindow:       cfg.OverloadWindow,
		OverloadThresholdPct: cfg.OverloadThresholdPct,
		RateLimitRPS:         cfg.RateLimitRPS,
		DegradedWindow:       cfg.DegradedWindow,
		DegradedErrorPct:     cfg.DegradedErrorPct,
	}
	var monitor *store.HealthMonitor
	if cfg.StoreBackend == config.BackendMongoDB {
		monitor = store.NewHealthMonitor(weatherStore, cfg.MongoHealthInterval, logger)
		if err := monitor.Start(); err != nil {
			logger.Fatal("store health monitor", zap.Error(err))
		}
		healthConfig.StoreHealthy = monitor.Healthy
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	observability.RegisterRateLimitGauges(cfg.OverloadWindow)

	h := httphandler.NewHandler(handler.New(weatherStore, logger), healthConfig, logger)
	router := httphandler.NewRouter(h, httphandler.RouterConfig{
		Limiter:        limiter,
		RequestTimeout: cfg.RequestTimeout,
	}, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered", zap.Int64("in_flight", httphandler.InFlightCount()))
	err = lifecycle.Shutdown(context.Background(), logger,
		lifecycle.Step{Name: "http server", Timeout: cfg.ShutdownTimeout, Run: srv.Shutdown},
		lifecycle.Step{Name: "in-flight requests", Timeout: cfg.ShutdownInFlightTimeout, Run: func(ctx context.Context) error {
			return httphandler.WaitForInFlight(ctx, cfg.ShutdownInFlightCheckInterval)
		}},
		lifecycle.Step{Name: "store health monitor", Run: func(context.Context) error {
			if monitor != nil {
				monitor.Stop()
			}
			return nil
		}},
		lifecycle.Step{Name: "store", Timeout: 5 * time.Second, Run: weatherStore.Close},
		lifecycle.Step{Name: "telemetry flush", Timeout: 5 * time.Second, Run: func(ctx context.Context) error {
			return observability.FlushTelemetry(ctx, logger)
		}},
	)
	if err != nil {
		logger.Warn("shutdown completed with errors", zap.Error(err))
		return
	}
	logger.Info("shutdown complete")
}
