// Package app assembles the assessment service for the standalone binaries.
package app

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/pregnancycare-risk-service/internal/cache"
	"github.com/pregnancycare-risk-service/internal/config"
	"github.com/pregnancycare-risk-service/internal/domain"
	"github.com/pregnancycare-risk-service/internal/features"
	"github.com/pregnancycare-risk-service/internal/monitoring"
	"github.com/pregnancycare-risk-service/internal/predictor"
	"github.com/pregnancycare-risk-service/internal/service"
	"github.com/pregnancycare-risk-service/internal/store"
)

// closableStore is an assessment store owning a connection.
type closableStore interface {
	domain.AssessmentStore
	Close() error
}

// Lite is the assessment service backed by baseline models, an embedded or
// database/sql store and an in-process cache.
type Lite struct {
	Service  *service.AssessmentService
	Store    domain.AssessmentStore
	Cache    *cache.MemoryCache
	Metrics  *monitoring.Collector
	Registry *predictor.Registry

	store  closableStore
	logger *logrus.Logger
}

// NewLite builds the lite stack. alerts may be nil.
func NewLite(cfg *config.LiteConfig, alerts service.AlertPublisher, logger *logrus.Logger) (*Lite, error) {
	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	memCache := cache.NewMemoryCache(cfg.CacheMaxItems, cfg.CacheTTL)
	metrics := monitoring.NewCollector(logger)
	registry := predictor.NewBaselineRegistry()

	deps := service.Dependencies{
		Registry: registry,
		Features: features.NewEngineer(),
		Store:    st,
		Cache:    memCache,
		Metrics:  metrics,
		Alerts:   alerts,
		Logger:   logger,
	}

	svc, err := service.NewAssessmentService(deps, service.Options{
		PredictionTimeout: cfg.PredictionTimeout,
		CacheTTL:          cfg.CacheTTL,
	})
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to create assessment service: %w", err)
	}

	return &Lite{
		Service:  svc,
		Store:    st,
		Cache:    memCache,
		Metrics:  metrics,
		Registry: registry,
		store:    st,
		logger:   logger,
	}, nil
}

func openStore(cfg *config.LiteConfig) (closableStore, error) {
	if cfg.DatabaseURL != "" {
		st, err := store.NewPostgresStoreFromURL(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return st, nil
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	st, err := store.NewSQLiteStore(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}
	return st, nil
}

// Close waits for background writes, logs a metrics summary and closes the store.
func (l *Lite) Close() error {
	l.Service.Wait()
	l.Metrics.LogSummary()
	if err := l.store.Close(); err != nil {
		l.logger.WithError(err).Error("Failed to close assessment store")
		return err
	}
	return nil
}
