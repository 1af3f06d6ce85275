package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eluceo/jacobine/internal/config"
	"github.com/eluceo/jacobine/internal/logger"
)

// signalContext returns a context cancelled on SIGINT/SIGTERM, so every
// long-running subcommand exits 0 on a clean shutdown.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// loadAppConfig reads and validates the YAML configuration and builds
// the shared structured logger from its Logging section.
func loadAppConfig(path string) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}

	return cfg, log, nil
}

// startMetricsServer serves /metrics in the background until ctx is
// done, then closes the server; shutdown does not wait for that close or
// for in-flight scrapes to finish.
func startMetricsServer(ctx context.Context, addr string, log logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", logger.Error(err))
		}
	}()

	log.Info("metrics endpoint listening", logger.String("addr", addr))
}
