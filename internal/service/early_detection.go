package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pregnancycare-risk-service/internal/domain"
)

// EarlyDetectionScanner drives an early-detection model across the fixed
// 14-day horizon. Day offsets are predicted concurrently.
type EarlyDetectionScanner struct {
	window      int
	concurrency int
}

// NewEarlyDetectionScanner creates a scanner over the standard window.
// concurrency <= 0 issues all day calls at once.
func NewEarlyDetectionScanner(concurrency int) *EarlyDetectionScanner {
	return &EarlyDetectionScanner{
		window:      domain.EarlyDetectionWindowDays,
		concurrency: concurrency,
	}
}

// Scan returns one forecast per day offset, ascending from 1. If any day fails
// the whole scan fails and no forecasts are returned.
func (s *EarlyDetectionScanner) Scan(ctx context.Context, features *domain.Features, predictor domain.EarlyDetectionPredictor, now time.Time) ([]domain.TimeframeForecast, error) {
	forecasts := make([]domain.TimeframeForecast, s.window)

	g, gctx := errgroup.WithContext(ctx)
	if s.concurrency > 0 {
		g.SetLimit(s.concurrency)
	}

	for day := 1; day <= s.window; day++ {
		day := day
		g.Go(func() error {
			forecast, err := predictor.PredictTimeframe(gctx, features, day)
			if err != nil {
				return &domain.PredictionError{Model: "early_detection", Err: fmt.Errorf("day %d: %w", day, err)}
			}
			if forecast == nil {
				return &domain.PredictionError{Model: "early_detection", Err: fmt.Errorf("day %d: empty forecast", day)}
			}
			f := *forecast
			f.DaysAhead = day
			f.Date = now.Add(time.Duration(day) * 24 * time.Hour)
			forecasts[day-1] = f
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return forecasts, nil
}
