package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pregnancycare-risk-service/internal/domain"
	"github.com/pregnancycare-risk-service/internal/middleware"
)

const healthCheckTimeout = 5 * time.Second

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for _, check := range s.checks {
		if err := check.Check(ctx); err != nil {
			checks[check.Name] = err.Error()
			if check.Critical {
				status = "unhealthy"
				code = http.StatusServiceUnavailable
			} else if status == "healthy" {
				status = "degraded"
			}
			continue
		}
		checks[check.Name] = "ok"
	}

	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"version":   s.cfg.Version,
		"checks":    checks,
	})
}

func (s *Server) handleMetrics(c *gin.Context) {
	if s.metrics == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) handleModelStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": s.service.ModelStatus()})
}

func (s *Server) bindInput(c *gin.Context) (*domain.PatientInput, bool) {
	var input domain.PatientInput
	if err := c.ShouldBindJSON(&input); err != nil {
		s.respondError(c, domain.NewValidationError("body", "malformed request body: "+err.Error(), nil))
		return nil, false
	}
	return &input, true
}

func (s *Server) handleAssess(c *gin.Context) {
	input, ok := s.bindInput(c)
	if !ok {
		return
	}
	record, err := s.service.Assess(c.Request.Context(), input)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) handleGetAssessment(c *gin.Context) {
	record, err := s.service.GetAssessment(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) handlePatientHistory(c *gin.Context) {
	limit, err := intQuery(c, "limit")
	if err != nil {
		s.respondError(c, err)
		return
	}
	offset, err := intQuery(c, "offset")
	if err != nil {
		s.respondError(c, err)
		return
	}

	history, err := s.service.PatientHistory(c.Request.Context(), c.Param("patient_id"), limit, offset)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (s *Server) handleEarlyDetection(c *gin.Context) {
	input, ok := s.bindInput(c)
	if !ok {
		return
	}
	result, err := s.service.ScanEarlyDetection(c.Request.Context(), input)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handlePredictOutcome(c *gin.Context) {
	input, ok := s.bindInput(c)
	if !ok {
		return
	}
	result, err := s.service.PredictOutcome(c.Request.Context(), input)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handlePopulationInsights(c *gin.Context) {
	start, err := timeQuery(c, "start_date")
	if err != nil {
		s.respondError(c, err)
		return
	}
	end, err := timeQuery(c, "end_date")
	if err != nil {
		s.respondError(c, err)
		return
	}

	insights, err := s.service.PopulationInsights(c.Request.Context(), start, end)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, insights)
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError(name, name+" must be an integer", raw)
	}
	return n, nil
}

// timeQuery accepts RFC 3339 timestamps or plain dates.
func timeQuery(c *gin.Context, name string) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	return time.Time{}, domain.NewValidationError(name, name+" must be RFC 3339 or YYYY-MM-DD", raw)
}

// respondError maps service errors onto HTTP statuses and the error envelope.
func (s *Server) respondError(c *gin.Context, err error) {
	requestID := c.GetString(middleware.CorrelationIDKey)

	var (
		validationErr  *domain.ValidationError
		aggregationErr *domain.AggregationError
		status         int
		apiErr         *domain.APIError
	)
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
		apiErr = domain.NewAPIError(domain.ErrCodeValidation, validationErr.Message, validationErr.Field, requestID)
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		apiErr = domain.NewAPIError(domain.ErrCodeNotFound, "resource not found", err.Error(), requestID)
	case errors.As(err, &aggregationErr):
		status = http.StatusBadGateway
		apiErr = domain.NewAPIError(domain.ErrCodeAggregation, "risk assessment failed", aggregationErr.Error(), requestID)
	default:
		status = http.StatusInternalServerError
		apiErr = domain.NewAPIError(domain.ErrCodeInternalServer, "internal server error", "", requestID)
	}

	entry := s.log.WithError(err).WithField("correlation_id", requestID).WithField("status", status)
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Debug("Request rejected")
	}

	c.AbortWithStatusJSON(status, apiErr)
}
