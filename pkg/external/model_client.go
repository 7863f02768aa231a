package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/pregnancycare-risk-service/internal/domain"
)

// Model endpoint names used in request paths.
const (
	earlyDetectionEndpoint = "early_detection"
	outcomeEndpoint        = "outcome_prediction"
)

// ModelClient handles calls to the model-serving endpoint
type ModelClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	rateLimit  *rate.Limiter
	log        *logrus.Logger
}

// NewModelClient creates a new model-serving client
func NewModelClient(config domain.ModelConfig, logger *logrus.Logger) *ModelClient {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 50
	}

	return &ModelClient{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(config.RateLimit), config.RateLimit),
		log:       logger,
	}
}

type predictRequest struct {
	Features  *domain.Features `json:"features"`
	DaysAhead int              `json:"days_ahead,omitempty"`
}

// post sends a JSON request and decodes a JSON response into out
func (c *ModelClient) post(ctx context.Context, path string, body, out any) error {
	if err := c.rateLimit.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait failed: %w", err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("model endpoint %s returned status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}

	c.log.WithFields(logrus.Fields{
		"path":     path,
		"duration": time.Since(start),
	}).Debug("Model call completed")
	return nil
}

// PredictCondition scores one condition remotely.
func (c *ModelClient) PredictCondition(ctx context.Context, condition domain.Condition, features *domain.Features) (*domain.ConditionScore, error) {
	var score domain.ConditionScore
	path := fmt.Sprintf("/models/%s/predict", condition)
	if err := c.post(ctx, path, predictRequest{Features: features}, &score); err != nil {
		return nil, err
	}
	if score.Condition == "" {
		score.Condition = condition
	}
	return &score, nil
}

// PredictTimeframe requests a forecast daysAhead days into the future.
func (c *ModelClient) PredictTimeframe(ctx context.Context, features *domain.Features, daysAhead int) (*domain.TimeframeForecast, error) {
	var forecast domain.TimeframeForecast
	path := fmt.Sprintf("/models/%s/timeframe", earlyDetectionEndpoint)
	if err := c.post(ctx, path, predictRequest{Features: features, DaysAhead: daysAhead}, &forecast); err != nil {
		return nil, err
	}
	forecast.DaysAhead = daysAhead
	return &forecast, nil
}

// PredictOutcome requests delivery, maternal and fetal outcome predictions.
func (c *ModelClient) PredictOutcome(ctx context.Context, features *domain.Features) (*domain.OutcomeForecast, error) {
	var forecast domain.OutcomeForecast
	path := fmt.Sprintf("/models/%s/predict", outcomeEndpoint)
	if err := c.post(ctx, path, predictRequest{Features: features}, &forecast); err != nil {
		return nil, err
	}
	return &forecast, nil
}

// Ping checks that the model endpoint answers its health route.
func (c *ModelClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model endpoint health returned status %d", resp.StatusCode)
	}
	return nil
}
