package external

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/pregnancycare-risk-service/internal/domain"
	"github.com/pregnancycare-risk-service/internal/predictor"
)

// ErrModelUnavailable is returned when a model's circuit breaker rejects a call.
var ErrModelUnavailable = errors.New("model service unavailable (circuit breaker open)")

func newBreaker(name string, config domain.BreakerConfig, logger *logrus.Logger) *gobreaker.CircuitBreaker {
	if config.MaxRequests == 0 {
		config.MaxRequests = 5
	}
	if config.Interval == 0 {
		config.Interval = 30 * time.Second
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.MinRequests == 0 {
		config.MinRequests = 3
	}
	if config.FailureRatio == 0 {
		config.FailureRatio = 0.6
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= config.MinRequests && failureRatio >= config.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"model": name,
				"from":  from.String(),
				"to":    to.String(),
			}).Warn("Circuit breaker changed state")
		},
	})
}

func breakerErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	return err
}

// ConditionModel is a remote condition predictor guarded by its own circuit breaker.
type ConditionModel struct {
	client    *ModelClient
	condition domain.Condition
	breaker   *gobreaker.CircuitBreaker
}

// Predict implements domain.ConditionPredictor.
func (m *ConditionModel) Predict(ctx context.Context, features *domain.Features) (*domain.ConditionScore, error) {
	result, err := m.breaker.Execute(func() (interface{}, error) {
		return m.client.PredictCondition(ctx, m.condition, features)
	})
	if err != nil {
		return nil, &domain.PredictionError{Model: m.breaker.Name(), Condition: m.condition, Err: breakerErr(err)}
	}
	return result.(*domain.ConditionScore), nil
}

// BreakerState reports the breaker state for model status.
func (m *ConditionModel) BreakerState() string { return m.breaker.State().String() }

// EarlyDetectionModel is the remote early-detection predictor.
type EarlyDetectionModel struct {
	client  *ModelClient
	breaker *gobreaker.CircuitBreaker
}

// PredictTimeframe implements domain.EarlyDetectionPredictor.
func (m *EarlyDetectionModel) PredictTimeframe(ctx context.Context, features *domain.Features, daysAhead int) (*domain.TimeframeForecast, error) {
	result, err := m.breaker.Execute(func() (interface{}, error) {
		return m.client.PredictTimeframe(ctx, features, daysAhead)
	})
	if err != nil {
		return nil, &domain.PredictionError{Model: m.breaker.Name(), Err: breakerErr(err)}
	}
	return result.(*domain.TimeframeForecast), nil
}

// BreakerState reports the breaker state for model status.
func (m *EarlyDetectionModel) BreakerState() string { return m.breaker.State().String() }

// OutcomeModel is the remote outcome predictor.
type OutcomeModel struct {
	client  *ModelClient
	breaker *gobreaker.CircuitBreaker
}

// PredictOutcome implements domain.OutcomePredictor.
func (m *OutcomeModel) PredictOutcome(ctx context.Context, features *domain.Features) (*domain.OutcomeForecast, error) {
	result, err := m.breaker.Execute(func() (interface{}, error) {
		return m.client.PredictOutcome(ctx, features)
	})
	if err != nil {
		return nil, &domain.PredictionError{Model: m.breaker.Name(), Err: breakerErr(err)}
	}
	return result.(*domain.OutcomeForecast), nil
}

// BreakerState reports the breaker state for model status.
func (m *OutcomeModel) BreakerState() string { return m.breaker.State().String() }

// ResilientModels bundles the remote predictors, one breaker per model.
type ResilientModels struct {
	Conditions     map[domain.Condition]*ConditionModel
	EarlyDetection *EarlyDetectionModel
	Outcome        *OutcomeModel
}

// NewResilientModels wraps every model behind the client with a circuit breaker
func NewResilientModels(client *ModelClient, config domain.BreakerConfig, logger *logrus.Logger) *ResilientModels {
	models := &ResilientModels{
		Conditions: make(map[domain.Condition]*ConditionModel, len(domain.Conditions())),
		EarlyDetection: &EarlyDetectionModel{
			client:  client,
			breaker: newBreaker(earlyDetectionEndpoint, config, logger),
		},
		Outcome: &OutcomeModel{
			client:  client,
			breaker: newBreaker(outcomeEndpoint, config, logger),
		},
	}
	for _, c := range domain.Conditions() {
		models.Conditions[c] = &ConditionModel{
			client:    client,
			condition: c,
			breaker:   newBreaker(string(c), config, logger),
		}
	}
	return models
}

// BreakerStates returns the current state of all circuit breakers
func (r *ResilientModels) BreakerStates() map[string]string {
	states := map[string]string{
		earlyDetectionEndpoint: r.EarlyDetection.BreakerState(),
		outcomeEndpoint:        r.Outcome.BreakerState(),
	}
	for c, m := range r.Conditions {
		states[string(c)] = m.BreakerState()
	}
	return states
}

// RegisterWith installs every remote model into the registry.
func (r *ResilientModels) RegisterWith(registry *predictor.Registry) error {
	for c, m := range r.Conditions {
		if err := registry.RegisterCondition(c, m); err != nil {
			return fmt.Errorf("registering %s model: %w", c, err)
		}
	}
	registry.RegisterEarlyDetection(r.EarlyDetection)
	registry.RegisterOutcome(r.Outcome)
	return nil
}
