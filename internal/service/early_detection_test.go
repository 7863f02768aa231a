package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pregnancycare-risk-service/internal/domain"
)

// stubTimeframePredictor answers every day offset unless failDay matches.
type stubTimeframePredictor struct {
	failDay  int
	calls    atomic.Int32
	delay    time.Duration
	delayFor func(daysAhead int) time.Duration

	mu       sync.Mutex
	finished []int
}

func (p *stubTimeframePredictor) PredictTimeframe(ctx context.Context, _ *domain.Features, daysAhead int) (*domain.TimeframeForecast, error) {
	p.calls.Add(1)
	delay := p.delay
	if p.delayFor != nil {
		delay = p.delayFor(daysAhead)
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if daysAhead == p.failDay {
		return nil, errors.New("model unavailable")
	}
	p.mu.Lock()
	p.finished = append(p.finished, daysAhead)
	p.mu.Unlock()
	return &domain.TimeframeForecast{
		Conditions: map[domain.Condition]domain.ConditionForecast{
			domain.Preeclampsia: {Probability: float64(daysAhead) / 100, Confidence: 0.8},
		},
		OverallProbability: float64(daysAhead) / 100,
		Confidence:         0.8,
	}, nil
}

func TestEarlyDetectionScanner_Scan(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	predictor := &stubTimeframePredictor{}

	forecasts, err := NewEarlyDetectionScanner(0).Scan(context.Background(), &domain.Features{}, predictor, now)
	require.NoError(t, err)
	require.Len(t, forecasts, domain.EarlyDetectionWindowDays)

	for i, f := range forecasts {
		day := i + 1
		assert.Equal(t, day, f.DaysAhead)
		assert.Equal(t, now.Add(time.Duration(day)*24*time.Hour), f.Date)
		assert.InDelta(t, float64(day)/100, f.OverallProbability, 1e-9)
	}
	assert.Equal(t, int32(domain.EarlyDetectionWindowDays), predictor.calls.Load())
}

func TestEarlyDetectionScanner_OrderIndependentOfCompletion(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	predictor := &stubTimeframePredictor{
		delayFor: func(daysAhead int) time.Duration {
			return time.Duration(domain.EarlyDetectionWindowDays-daysAhead) * 5 * time.Millisecond
		},
	}

	forecasts, err := NewEarlyDetectionScanner(0).Scan(context.Background(), &domain.Features{}, predictor, now)
	require.NoError(t, err)
	require.Len(t, forecasts, domain.EarlyDetectionWindowDays)

	predictor.mu.Lock()
	finished := append([]int(nil), predictor.finished...)
	predictor.mu.Unlock()
	require.Len(t, finished, domain.EarlyDetectionWindowDays)
	assert.Equal(t, domain.EarlyDetectionWindowDays, finished[0], "latest day should answer first")

	for i, f := range forecasts {
		day := i + 1
		assert.Equal(t, day, f.DaysAhead)
		assert.Equal(t, now.Add(time.Duration(day)*24*time.Hour), f.Date)
		assert.InDelta(t, float64(day)/100, f.OverallProbability, 1e-9)
	}
}

func TestEarlyDetectionScanner_BoundedConcurrency(t *testing.T) {
	predictor := &stubTimeframePredictor{delay: time.Millisecond}

	forecasts, err := NewEarlyDetectionScanner(3).Scan(context.Background(), &domain.Features{}, predictor, time.Now())
	require.NoError(t, err)
	assert.Len(t, forecasts, domain.EarlyDetectionWindowDays)
}

func TestEarlyDetectionScanner_FailureFailsWholeScan(t *testing.T) {
	predictor := &stubTimeframePredictor{failDay: 7}

	forecasts, err := NewEarlyDetectionScanner(0).Scan(context.Background(), &domain.Features{}, predictor, time.Now())
	require.Error(t, err)
	assert.Nil(t, forecasts)

	var predErr *domain.PredictionError
	require.True(t, errors.As(err, &predErr))
	assert.Equal(t, "early_detection", predErr.Model)
	assert.Contains(t, err.Error(), "day 7")
}

func TestEarlyDetectionScanner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	predictor := &stubTimeframePredictor{delay: time.Second}
	_, err := NewEarlyDetectionScanner(0).Scan(ctx, &domain.Features{}, predictor, time.Now())
	assert.ErrorIs(t, err, context.Canceled)
}
