// Package api exposes the assessment service over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pregnancycare-risk-service/internal/domain"
	"github.com/pregnancycare-risk-service/internal/middleware"
	"github.com/pregnancycare-risk-service/internal/monitoring"
)

// RiskService is the assessment surface served over HTTP.
type RiskService interface {
	Assess(ctx context.Context, input *domain.PatientInput) (*domain.AssessmentRecord, error)
	GetAssessment(ctx context.Context, assessmentID string) (*domain.AssessmentRecord, error)
	PatientHistory(ctx context.Context, patientID string, limit, offset int) (*domain.PatientHistory, error)
	PopulationInsights(ctx context.Context, start, end time.Time) (*domain.PopulationInsights, error)
	ScanEarlyDetection(ctx context.Context, input *domain.PatientInput) (*domain.EarlyDetectionResult, error)
	PredictOutcome(ctx context.Context, input *domain.PatientInput) (*domain.OutcomeResult, error)
	ModelStatus() []domain.ModelStatus
}

// MetricsSource provides the snapshot served at /metrics.
type MetricsSource interface {
	Snapshot() monitoring.Snapshot
}

// HealthCheck is one dependency probed by /health. A failing critical check
// makes the service unhealthy; other failures only degrade it.
type HealthCheck struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) error
}

// Config holds the HTTP settings of a Server.
type Config struct {
	Server  domain.ServerConfig
	Auth    domain.AuthConfig
	Version string
	Debug   bool
}

// Dependencies are the collaborators of a Server. Metrics and Alerts are optional.
type Dependencies struct {
	Service RiskService
	Metrics MetricsSource
	Alerts  *AlertHub
	Checks  []HealthCheck
	Logger  *logrus.Logger
}

// Server represents the HTTP server
type Server struct {
	cfg     Config
	service RiskService
	metrics MetricsSource
	alerts  *AlertHub
	checks  []HealthCheck
	log     *logrus.Logger
	router  *gin.Engine
	server  *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(cfg Config, deps Dependencies) *Server {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(corsMiddleware())

	s := &Server{
		cfg:     cfg,
		service: deps.Service,
		metrics: deps.Metrics,
		alerts:  deps.Alerts,
		checks:  deps.Checks,
		log:     deps.Logger,
		router:  router,
	}
	s.setupRoutes()
	return s
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.cfg.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithFields(logrus.Fields{"addr": addr, "tls": cfg.TLSEnabled}).Info("HTTP server listening")
		var err error
		if cfg.TLSEnabled {
			err = s.server.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	if s.alerts != nil {
		s.alerts.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.log.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", s.handleMetrics)

	limiter := middleware.NewRateLimiter(s.cfg.Server.RateLimit, s.cfg.Server.RateBurst)

	v1 := s.router.Group("/api/v1")
	v1.Use(limiter.Middleware())
	v1.Use(middleware.JWTAuth(middleware.JWTConfig{
		Secret: []byte(s.cfg.Auth.JWTSecret),
		Issuer: s.cfg.Auth.Issuer,
	}))

	if s.alerts != nil {
		v1.GET("/alerts/ws", s.alerts.ServeWS)
	}

	api := v1.Group("")
	api.Use(middleware.RequestTimeout(s.cfg.Server.RequestTimeout))
	{
		api.GET("/models/status", s.handleModelStatus)
		api.POST("/risk-assessment", s.handleAssess)
		api.GET("/risk-assessment/patient/:patient_id", s.handlePatientHistory)
		api.GET("/risk-assessment/:id", s.handleGetAssessment)
		api.POST("/predict/early-detection", s.handleEarlyDetection)
		api.POST("/predict/outcome", s.handlePredictOutcome)
		api.GET("/analytics/population-insights", s.handlePopulationInsights)
	}
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Correlation-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length, X-Correlation-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
