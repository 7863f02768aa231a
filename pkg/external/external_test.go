package external

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pregnancycare-risk-service/internal/domain"
	"github.com/pregnancycare-risk-service/internal/predictor"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func testFeatures() *domain.Features {
	return &domain.Features{
		Numeric: map[string]float64{"age": 31, "systolic_bp": 142},
		Flags:   map[string]bool{"hypertensive_reading": true},
	}
}

func newModelServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/models/preeclampsia/predict", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req predictRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Features.Flag("hypertensive_reading"))

		_ = json.NewEncoder(w).Encode(domain.ConditionScore{
			Condition:   domain.Preeclampsia,
			Score:       72,
			Probability: 0.72,
			Confidence:  0.9,
			Trend:       domain.TrendWorsening,
		})
	})
	mux.HandleFunc("/models/early_detection/timeframe", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var req predictRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(domain.TimeframeForecast{
			OverallProbability: float64(req.DaysAhead) / 100,
			Confidence:         0.8,
		})
	})
	mux.HandleFunc("/models/outcome_prediction/predict", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_ = json.NewEncoder(w).Encode(domain.OutcomeForecast{
			Delivery:                 map[string]any{"preterm_probability": 0.1},
			RecommendedInterventions: []string{"Routine prenatal care"},
			Confidence:               0.7,
		})
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestModelClient(t *testing.T) {
	var hits atomic.Int32
	server := newModelServer(t, &hits)
	client := NewModelClient(domain.ModelConfig{
		BaseURL: server.URL + "/",
		APIKey:  "secret",
		Timeout: 2 * time.Second,
	}, testLogger())
	ctx := context.Background()

	t.Run("Predict_Condition", func(t *testing.T) {
		score, err := client.PredictCondition(ctx, domain.Preeclampsia, testFeatures())
		require.NoError(t, err)
		assert.Equal(t, domain.Preeclampsia, score.Condition)
		assert.Equal(t, 72.0, score.Score)
		assert.Equal(t, domain.TrendWorsening, score.Trend)
	})

	t.Run("Predict_Timeframe", func(t *testing.T) {
		forecast, err := client.PredictTimeframe(ctx, testFeatures(), 7)
		require.NoError(t, err)
		assert.Equal(t, 7, forecast.DaysAhead)
		assert.InDelta(t, 0.07, forecast.OverallProbability, 1e-9)
	})

	t.Run("Predict_Outcome", func(t *testing.T) {
		forecast, err := client.PredictOutcome(ctx, testFeatures())
		require.NoError(t, err)
		assert.Equal(t, []string{"Routine prenatal care"}, forecast.RecommendedInterventions)
		assert.Equal(t, 0.1, forecast.Delivery["preterm_probability"])
	})

	t.Run("Unknown_Model", func(t *testing.T) {
		_, err := client.PredictCondition(ctx, domain.PretermBirth, testFeatures())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 404")
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, client.Ping(ctx))
	})
}

func TestResilientModels(t *testing.T) {
	var hits atomic.Int32
	server := newModelServer(t, &hits)
	client := NewModelClient(domain.ModelConfig{BaseURL: server.URL, APIKey: "secret"}, testLogger())
	models := NewResilientModels(client, domain.BreakerConfig{}, testLogger())

	score, err := models.Conditions[domain.Preeclampsia].Predict(context.Background(), testFeatures())
	require.NoError(t, err)
	assert.Equal(t, 72.0, score.Score)

	states := models.BreakerStates()
	assert.Len(t, states, 5)
	for name, state := range states {
		assert.Equal(t, "closed", state, name)
	}

	registry := predictor.NewRegistry("remote-v1")
	require.NoError(t, models.RegisterWith(registry))
	for _, status := range registry.Status() {
		assert.True(t, status.Loaded, status.Name)
		assert.Equal(t, "closed", status.BreakerState, status.Name)
		assert.Equal(t, "remote-v1", status.Version)
	}
}

func TestCircuitBreakerTrips(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewModelClient(domain.ModelConfig{BaseURL: server.URL}, testLogger())
	models := NewResilientModels(client, domain.BreakerConfig{
		MinRequests:  3,
		FailureRatio: 0.6,
		Timeout:      time.Minute,
	}, testLogger())
	model := models.Conditions[domain.GestationalDiabetes]
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := model.Predict(ctx, testFeatures())
		require.Error(t, err)
		var predErr *domain.PredictionError
		require.ErrorAs(t, err, &predErr)
		assert.Equal(t, domain.GestationalDiabetes, predErr.Condition)
	}
	assert.Equal(t, "open", model.BreakerState())

	_, err := model.Predict(ctx, testFeatures())
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.Equal(t, int32(3), hits.Load(), "open breaker must not reach the endpoint")

	assert.Equal(t, "closed", models.Conditions[domain.Preeclampsia].BreakerState())
}

func setupRedis(t *testing.T) *redis.Client {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisCache(t *testing.T) {
	client := setupRedis(t)
	cache := NewRedisCacheFromClient(client, time.Hour, testLogger())
	ctx := context.Background()
	require.NoError(t, cache.Ping(ctx))

	record := &domain.AssessmentRecord{
		AssessmentID: "ra_cache_1",
		PatientID:    "p-1",
		PregnancyID:  "preg-1",
		Timestamp:    time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC),
		OverallAssessment: domain.OverallAssessment{
			OverallScore: 67,
			RiskLevel:    domain.RiskHigh,
			Confidence:   0.85,
		},
		RiskScores:        []domain.ConditionScore{{Condition: domain.Preeclampsia, Score: 85, Probability: 0.85, Confidence: 0.9, Trend: domain.TrendWorsening}},
		Recommendations:   []domain.Recommendation{},
		NextAssessmentDue: time.Date(2024, 3, 16, 10, 0, 0, 0, time.UTC),
		ModelVersion:      "v1",
	}

	t.Run("Miss", func(t *testing.T) {
		got, found, err := cache.Get(ctx, "ra_absent")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, got)
	})

	t.Run("Put_And_Get", func(t *testing.T) {
		require.NoError(t, cache.Put(ctx, record, 0))

		got, found, err := cache.Get(ctx, record.AssessmentID)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, record.OverallAssessment, got.OverallAssessment)
		assert.True(t, record.Timestamp.Equal(got.Timestamp))

		ttl, err := client.TTL(ctx, domain.AssessmentKey(record.AssessmentID)).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, 59*time.Minute)
	})

	t.Run("Corrupted_Entry", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, domain.AssessmentKey("ra_bad"), "{not json", time.Minute).Err())

		_, found, err := cache.Get(ctx, "ra_bad")
		require.NoError(t, err)
		assert.False(t, found)

		exists, err := client.Exists(ctx, domain.AssessmentKey("ra_bad")).Result()
		require.NoError(t, err)
		assert.Zero(t, exists)
	})

	t.Run("Invalidate", func(t *testing.T) {
		require.NoError(t, cache.Invalidate(ctx, record.AssessmentID))
		_, found, err := cache.Get(ctx, record.AssessmentID)
		require.NoError(t, err)
		assert.False(t, found)
	})
}
