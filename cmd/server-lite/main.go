// Package main provides the lightweight entry point for the risk service.
// This version requires no external services: SQLite, an in-memory cache and
// the baseline models.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pregnancycare-risk-service/internal/api"
	"github.com/pregnancycare-risk-service/internal/app"
	"github.com/pregnancycare-risk-service/internal/config"
	"github.com/pregnancycare-risk-service/internal/domain"
)

var version = "dev"

func main() {
	// Load lightweight configuration
	cfg := config.LoadLiteConfig()
	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat)

	logger.WithField("data_dir", cfg.DataDir).Info("Starting pregnancy risk service (lite)")

	alerts := api.NewAlertHub(logger)
	lite, err := app.NewLite(cfg, alerts, logger)
	if err != nil {
		log.Fatalf("Failed to create assessment service: %v", err)
	}
	defer lite.Close()

	server := api.NewServer(api.Config{
		Server: domain.ServerConfig{
			Host:      cfg.Host,
			Port:      cfg.HTTPPort,
			RateLimit: cfg.RateLimit,
			RateBurst: cfg.RateBurst,
		},
		Auth:    domain.AuthConfig{JWTSecret: cfg.JWTSecret},
		Version: version,
	}, api.Dependencies{
		Service: lite.Service,
		Metrics: lite.Metrics,
		Alerts:  alerts,
		Checks: []api.HealthCheck{
			{Name: "database", Critical: true, Check: lite.Store.Ping},
			{Name: "cache", Check: lite.Cache.Ping},
		},
		Logger: logger,
	})

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("Server failed")
		return
	}

	logger.Info("Pregnancy risk service (lite) stopped")
}
