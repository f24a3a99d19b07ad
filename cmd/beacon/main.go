package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/0xReLogic/Beacon/internal/config"
	"github.com/0xReLogic/Beacon/internal/logging"
	"github.com/0xReLogic/Beacon/internal/metrics"
	"github.com/0xReLogic/Beacon/internal/ratelimit"
	"github.com/0xReLogic/Beacon/internal/server"
	"github.com/0xReLogic/Beacon/internal/tracing"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (defaults apply when empty)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, level, err := logging.New(cfg.Logging.Level, cfg.Logging.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	tp, shutdownTracing, err := tracing.Init(context.Background(), tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
	})
	if err != nil {
		logger.Fatal("failed_to_init_tracing", zap.Error(err))
	}
	if cfg.Tracing.Enabled {
		logger.Info("tracing_initialized",
			zap.String("service", cfg.Tracing.ServiceName),
			zap.String("endpoint", cfg.Tracing.Endpoint),
		)
	}

	var limiter *ratelimit.RateLimiter
	if cfg.RateLimit.RequestsPerSecond > 0 && len(cfg.RateLimit.Routes) > 0 {
		limiter = ratelimit.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.BurstSize, cfg.RateLimit.Routes)
		logger.Info("rate_limiting_initialized",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.BurstSize),
			zap.Strings("routes", cfg.RateLimit.Routes),
		)
	}

	srv, err := server.New(server.Options{
		Addr:           cfg.ListenAddr(),
		Greeting:       cfg.Greeting,
		PrometheusPath: cfg.PrometheusPath,
		Logger:         logger,
		Source:         metrics.DefaultSource(),
		Collector:      metrics.NewCollector(),
		RateLimiter:    limiter,
		TracerProvider: tp,
	})
	if err != nil {
		logger.Fatal("failed_to_build_server", zap.Error(err))
	}

	if *configPath != "" {
		err := config.WatchConfig(*configPath, func(next *config.Config, err error) {
			name := ""
			if next != nil {
				name = next.Logging.Level
			}
			logging.ApplyConfigReload(logger, level, name, err)
		})
		if err != nil {
			logger.Warn("config_watch_disabled", zap.Error(err))
		}
	}

	if err := srv.Listen(); err != nil {
		logger.Fatal("failed_to_bind", zap.Error(err))
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Serve(); err != nil {
			logger.Fatal("failed_to_serve", zap.Error(err))
		}
	}()

	logger.Info("beacon_started",
		zap.String("listen_addr", cfg.ListenAddr()),
		zap.String("prometheus_path", cfg.PrometheusPath),
	)

	// Wait for termination signal
	<-sigCh
	logger.Info("shutting_down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown_failed", zap.Error(err))
	}
	if err := shutdownTracing(ctx); err != nil {
		logger.Error("tracing_shutdown_failed", zap.Error(err))
	}
}
