package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"hlbrowse/internal/config"
	"hlbrowse/internal/index/postgres"
	"hlbrowse/internal/logging"
	"hlbrowse/internal/metrics"
	"hlbrowse/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.InitDefault()
		logging.Fatal("invalid configuration", zap.Error(err))
	}

	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		logging.InitDefault()
		logging.Fatal("failed to initialize logging", zap.Error(err))
	}
	defer logging.Sync()

	logging.Info("starting hlbrowse",
		zap.String("listen_addr", cfg.ListenAddr),
		zap.String("metrics_addr", cfg.MetricsAddr),
	)

	store, err := postgres.New(cfg.DatabaseURL)
	if err != nil {
		logging.Fatal("failed to connect to database", zap.Error(err))
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		logging.Fatal("failed to run migrations", zap.Error(err))
	}

	server, err := web.NewServer(store, store, store, cfg)
	if err != nil {
		logging.Fatal("failed to build web server", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      server.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}

	go func() {
		logging.Info("metrics listener started", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("metrics listener failed", zap.Error(err))
		}
	}()

	// Keep the connection pool gauge fresh.
	poolTicker := time.NewTicker(15 * time.Second)
	defer poolTicker.Stop()
	go func() {
		for range poolTicker.C {
			store.UpdateConnectionMetrics()
		}
	}()

	go func() {
		logging.Info("http listener started", zap.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal("http listener failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logging.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logging.Error("http shutdown failed", zap.Error(err))
	}
	if err := metricsServer.Shutdown(ctx); err != nil {
		logging.Error("metrics shutdown failed", zap.Error(err))
	}

	logging.Info("stopped")
}
