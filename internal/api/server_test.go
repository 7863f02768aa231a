package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pregnancycare-risk-service/internal/cache"
	"github.com/pregnancycare-risk-service/internal/domain"
	"github.com/pregnancycare-risk-service/internal/features"
	"github.com/pregnancycare-risk-service/internal/monitoring"
	"github.com/pregnancycare-risk-service/internal/predictor"
	"github.com/pregnancycare-risk-service/internal/service"
	"github.com/pregnancycare-risk-service/internal/store"
)

type testEnv struct {
	server  *Server
	service *service.AssessmentService
	metrics *monitoring.Collector
	alerts  *AlertHub
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func newTestEnv(t *testing.T, cfg Config, checks ...HealthCheck) *testEnv {
	t.Helper()
	logger := testLogger()

	sqlite, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "assessments.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	metrics := monitoring.NewCollector(logger)
	alerts := NewAlertHub(logger)
	t.Cleanup(alerts.Close)

	svc, err := service.NewAssessmentService(service.Dependencies{
		Registry: predictor.NewBaselineRegistry(),
		Features: features.NewEngineer(),
		Store:    sqlite,
		Cache:    cache.NewMemoryCache(16, time.Hour),
		Metrics:  metrics,
		Alerts:   alerts,
		Logger:   logger,
	}, service.Options{})
	require.NoError(t, err)

	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 10 * time.Second
	}
	cfg.Version = "test"

	return &testEnv{
		server: NewServer(cfg, Dependencies{
			Service: svc,
			Metrics: metrics,
			Alerts:  alerts,
			Checks:  checks,
			Logger:  logger,
		}),
		service: svc,
		metrics: metrics,
		alerts:  alerts,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func float(v float64) *float64 { return &v }

func validInput(patientID string) *domain.PatientInput {
	return &domain.PatientInput{
		PatientID:   patientID,
		PregnancyID: "preg-" + patientID,
		PatientData: &domain.PatientData{
			Age:            29,
			BMI:            23.5,
			GestationalAge: 24,
		},
		VitalSigns: &domain.VitalSigns{
			BloodPressureSystolic:  float(118),
			BloodPressureDiastolic: float(76),
			HeartRate:              float(80),
			GlucoseLevel:           float(88),
		},
	}
}

func TestServer_Health(t *testing.T) {
	t.Run("Healthy", func(t *testing.T) {
		env := newTestEnv(t, Config{},
			HealthCheck{Name: "database", Critical: true, Check: func(context.Context) error { return nil }},
		)
		w := env.do(t, http.MethodGet, "/health", nil, nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, "test", body["version"])
		assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
	})

	t.Run("Degraded_Cache", func(t *testing.T) {
		env := newTestEnv(t, Config{},
			HealthCheck{Name: "database", Critical: true, Check: func(context.Context) error { return nil }},
			HealthCheck{Name: "cache", Check: func(context.Context) error { return errors.New("connection refused") }},
		)
		w := env.do(t, http.MethodGet, "/health", nil, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"degraded"`)
	})

	t.Run("Database_Down", func(t *testing.T) {
		env := newTestEnv(t, Config{},
			HealthCheck{Name: "database", Critical: true, Check: func(context.Context) error { return errors.New("connection refused") }},
		)
		w := env.do(t, http.MethodGet, "/health", nil, nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), `"unhealthy"`)
	})
}

func TestServer_AssessAndRetrieve(t *testing.T) {
	env := newTestEnv(t, Config{})

	w := env.do(t, http.MethodPost, "/api/v1/risk-assessment", validInput("patient-1"), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var record domain.AssessmentRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	assert.True(t, strings.HasPrefix(record.AssessmentID, "ra_"))
	assert.Equal(t, "patient-1", record.PatientID)
	assert.Len(t, record.RiskScores, 3)
	assert.Equal(t, domain.RiskLow, record.RiskLevel)
	assert.Empty(t, record.Recommendations)

	env.service.Wait()

	t.Run("Get_By_ID", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/risk-assessment/"+record.AssessmentID, nil, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var got domain.AssessmentRecord
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, record.AssessmentID, got.AssessmentID)
		assert.Equal(t, record.OverallScore, got.OverallScore)
	})

	t.Run("History", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/risk-assessment/patient/patient-1?limit=5", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var history domain.PatientHistory
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
		assert.Equal(t, int64(1), history.Total)
		assert.Equal(t, 5, history.Limit)
		assert.False(t, history.HasMore)
		require.Len(t, history.Assessments, 1)
		assert.Equal(t, record.AssessmentID, history.Assessments[0].AssessmentID)
	})

	t.Run("Population_Insights", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/analytics/population-insights", nil, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var insights domain.PopulationInsights
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &insights))
		assert.Equal(t, int64(1), insights.TotalAssessments)
		assert.Equal(t, int64(1), insights.UniquePatients)
	})

	t.Run("Metrics", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/metrics", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var snapshot monitoring.Snapshot
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snapshot))
		assert.Equal(t, int64(1), snapshot.AssessmentsTotal)
		assert.Equal(t, domain.RiskLow, snapshot.LastRiskLevel)
	})
}

func TestServer_ErrorMapping(t *testing.T) {
	env := newTestEnv(t, Config{})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"Missing_Patient_ID", http.MethodPost, "/api/v1/risk-assessment", &domain.PatientInput{PregnancyID: "p"}, http.StatusBadRequest, domain.ErrCodeValidation},
		{"Malformed_Body", http.MethodPost, "/api/v1/predict/outcome", "not an object", http.StatusBadRequest, domain.ErrCodeValidation},
		{"Unknown_Assessment", http.MethodGet, "/api/v1/risk-assessment/ra_missing", nil, http.StatusNotFound, domain.ErrCodeNotFound},
		{"Bad_Limit", http.MethodGet, "/api/v1/risk-assessment/patient/p-1?limit=ten", nil, http.StatusBadRequest, domain.ErrCodeValidation},
		{"Negative_Offset", http.MethodGet, "/api/v1/risk-assessment/patient/p-1?offset=-1", nil, http.StatusBadRequest, domain.ErrCodeValidation},
		{"Bad_Date", http.MethodGet, "/api/v1/analytics/population-insights?start_date=yesterday", nil, http.StatusBadRequest, domain.ErrCodeValidation},
		{"Inverted_Window", http.MethodGet, "/api/v1/analytics/population-insights?start_date=2024-03-10&end_date=2024-03-01", nil, http.StatusBadRequest, domain.ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.method, tt.path, tt.body, http.Header{"X-Correlation-Id": {"corr-" + tt.name}})
			assert.Equal(t, tt.status, w.Code)

			var apiErr domain.APIError
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
			assert.Equal(t, tt.code, apiErr.Code)
			assert.Equal(t, "corr-"+tt.name, apiErr.RequestID)
		})
	}
}

func TestServer_Predictions(t *testing.T) {
	env := newTestEnv(t, Config{})

	t.Run("Early_Detection", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/predict/early-detection", validInput("p-ed"), nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var result domain.EarlyDetectionResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		require.Len(t, result.Predictions, domain.EarlyDetectionWindowDays)
		for i, p := range result.Predictions {
			assert.Equal(t, i+1, p.DaysAhead)
		}
		assert.Equal(t, "14 days", result.DetectionWindow)
	})

	t.Run("Outcome", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/predict/outcome", validInput("p-out"), nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var result domain.OutcomeResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.Equal(t, "p-out", result.PatientID)
		assert.NotEmpty(t, result.ModelVersion)
	})

	t.Run("Model_Status", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/models/status", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Models []domain.ModelStatus `json:"models"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Len(t, body.Models, 5)
	})
}

func TestServer_JWTAuth(t *testing.T) {
	secret := "test-secret"
	env := newTestEnv(t, Config{Auth: domain.AuthConfig{JWTSecret: secret, Issuer: "clinic"}})

	w := env.do(t, http.MethodGet, "/api/v1/models/status", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "clinician-7",
		Issuer:    "clinic",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	w = env.do(t, http.MethodGet, "/api/v1/models/status", nil, http.Header{"Authorization": {"Bearer " + signed}})
	assert.Equal(t, http.StatusOK, w.Code)

	// Health stays public.
	w = env.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_AlertStream(t *testing.T) {
	env := newTestEnv(t, Config{})
	srv := httptest.NewServer(env.server.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/alerts/ws?patient_id=p-alert"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.Eventually(t, func() bool { return env.alerts.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	other := &domain.AssessmentRecord{
		AssessmentID:      "ra_other",
		PatientID:         "p-other",
		OverallAssessment: domain.OverallAssessment{OverallScore: 90, RiskLevel: domain.RiskCritical},
	}
	record := &domain.AssessmentRecord{
		AssessmentID:      "ra_alert",
		PatientID:         "p-alert",
		PregnancyID:       "preg-alert",
		Timestamp:         now,
		OverallAssessment: domain.OverallAssessment{OverallScore: 85, RiskLevel: domain.RiskCritical},
		Recommendations:   []domain.Recommendation{{Title: "Blood pressure monitoring"}},
		NextAssessmentDue: now.Add(6 * time.Hour),
	}
	env.alerts.Publish(other)
	env.alerts.Publish(record)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var alert Alert
	require.NoError(t, conn.ReadJSON(&alert))
	assert.Equal(t, "high_risk_alert", alert.Type)
	assert.Equal(t, "ra_alert", alert.AssessmentID)
	assert.Equal(t, domain.RiskCritical, alert.RiskLevel)
	assert.Equal(t, 85.0, alert.OverallScore)
	assert.Equal(t, []string{"Blood pressure monitoring"}, alert.Recommendations)

	env.alerts.Close()
	assert.Equal(t, 0, env.alerts.Subscribers())
}
