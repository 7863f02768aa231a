package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/pregnancycare-risk-service/internal/api"
	"github.com/pregnancycare-risk-service/internal/config"
	"github.com/pregnancycare-risk-service/internal/database"
	"github.com/pregnancycare-risk-service/internal/features"
	"github.com/pregnancycare-risk-service/internal/monitoring"
	"github.com/pregnancycare-risk-service/internal/predictor"
	"github.com/pregnancycare-risk-service/internal/repository"
	"github.com/pregnancycare-risk-service/internal/service"
	"github.com/pregnancycare-risk-service/pkg/external"
)

var version = "dev"

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := config.NewLogger(cfg.Logging.Level, cfg.Logging.Format)

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

	if err := run(ctx, configManager, logger); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

func run(ctx context.Context, configManager *config.Manager, logger *logrus.Logger) error {
	cfg := configManager.GetConfig()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, configManager.GetDatabaseURL(), cfg.Database.MigrationsPath, logger); err != nil {
			return err
		}
	}

	db, err := database.NewConnection(ctx, database.ConfigFromSettings(cfg.Database), logger)
	if err != nil {
		return err
	}
	defer db.Close()

	redisCache, err := external.NewRedisCache(cfg.Cache, logger)
	if err != nil {
		return err
	}
	defer redisCache.Close()

	modelClient := external.NewModelClient(cfg.Models, logger)
	models := external.NewResilientModels(modelClient, cfg.Models.Breaker, logger)
	registry := predictor.NewRegistry(cfg.Models.Version)
	if err := models.RegisterWith(registry); err != nil {
		return err
	}

	weights, err := service.WeightsFromConfig(cfg.Risk.Weights)
	if err != nil {
		return err
	}

	metrics := monitoring.NewCollector(logger)
	alerts := api.NewAlertHub(logger)

	svc, err := service.NewAssessmentService(service.Dependencies{
		Registry: registry,
		Features: features.NewEngineer(),
		Store:    repository.NewAssessmentRepository(db.Pool, logger),
		Cache:    redisCache,
		Metrics:  metrics,
		Alerts:   alerts,
		Logger:   logger,
	}, service.Options{
		Weights:           weights,
		PredictionTimeout: cfg.Models.PredictionTimeout,
		CacheTTL:          cfg.Cache.DefaultTTL,
	})
	if err != nil {
		return err
	}
	defer func() {
		svc.Wait()
		metrics.LogSummary()
	}()

	server := api.NewServer(api.Config{
		Server:  cfg.Server,
		Auth:    cfg.Auth,
		Version: version,
		Debug:   configManager.IsDevelopment(),
	}, api.Dependencies{
		Service: svc,
		Metrics: metrics,
		Alerts:  alerts,
		Checks: []api.HealthCheck{
			{Name: "database", Critical: true, Check: db.Health},
			{Name: "cache", Check: redisCache.Ping},
			{Name: "models", Check: modelClient.Ping},
		},
		Logger: logger,
	})

	logger.WithFields(logrus.Fields{
		"host":    cfg.Server.Host,
		"port":    cfg.Server.Port,
		"version": version,
	}).Info("Starting pregnancy risk service")

	return server.Start(ctx)
}
