package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pregnancycare-risk-service/internal/domain"
)

const (
	defaultCacheTTL          = time.Hour
	defaultPredictionTimeout = 30 * time.Second
	defaultHandoffTimeout    = 10 * time.Second
	defaultHistoryLimit      = 50
	maxHistoryLimit          = 200
	defaultInsightsWindow    = 30 * 24 * time.Hour
)

// MetricsRecorder receives assessment outcomes for monitoring.
type MetricsRecorder interface {
	RecordAssessment(record *domain.AssessmentRecord, duration time.Duration)
	RecordFailure(operation string)
	RecordStorageFailure()
	RecordCacheFailure()
}

// AlertPublisher receives copies of high and critical assessments.
type AlertPublisher interface {
	Publish(record *domain.AssessmentRecord)
}

// Dependencies are the collaborators of an AssessmentService. Store, Cache,
// Metrics and Alerts are optional.
type Dependencies struct {
	Registry domain.ModelRegistry
	Features domain.FeatureEngineer
	Store    domain.AssessmentStore
	Cache    domain.AssessmentCache
	Metrics  MetricsRecorder
	Alerts   AlertPublisher
	Logger   *logrus.Logger
	Clock    func() time.Time
}

// Options tune the assessment policy.
type Options struct {
	Weights           WeightTable
	Bundles           BundleTable
	PredictionTimeout time.Duration
	CacheTTL          time.Duration
	ScanConcurrency   int
}

// AssessmentService orchestrates feature engineering, the per-condition model
// fan-out, aggregation, scheduling and recommendations, then hands the record
// to the store and cache without blocking the caller.
type AssessmentService struct {
	deps        Dependencies
	aggregator  *RiskAggregator
	recommender *RecommendationEngine
	scanner     *EarlyDetectionScanner

	predictionTimeout time.Duration
	cacheTTL          time.Duration

	pending sync.WaitGroup
}

// NewAssessmentService validates the dependencies and the weight table.
func NewAssessmentService(deps Dependencies, opts Options) (*AssessmentService, error) {
	if deps.Registry == nil {
		return nil, fmt.Errorf("model registry is required")
	}
	if deps.Features == nil {
		return nil, fmt.Errorf("feature engineer is required")
	}
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}
	if deps.Clock == nil {
		deps.Clock = func() time.Time { return time.Now().UTC() }
	}

	weights := opts.Weights
	if weights == nil {
		weights = DefaultWeights()
	}
	aggregator, err := NewRiskAggregator(weights)
	if err != nil {
		return nil, fmt.Errorf("creating risk aggregator: %w", err)
	}

	bundles := opts.Bundles
	if bundles == nil {
		bundles = DefaultBundles()
	}
	if opts.PredictionTimeout <= 0 {
		opts.PredictionTimeout = defaultPredictionTimeout
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}

	return &AssessmentService{
		deps:              deps,
		aggregator:        aggregator,
		recommender:       NewRecommendationEngine(bundles),
		scanner:           NewEarlyDetectionScanner(opts.ScanConcurrency),
		predictionTimeout: opts.PredictionTimeout,
		cacheTTL:          opts.CacheTTL,
	}, nil
}

// Assess performs a full risk assessment for one patient.
func (s *AssessmentService) Assess(ctx context.Context, input *domain.PatientInput) (*domain.AssessmentRecord, error) {
	start := time.Now()

	if err := input.Validate(); err != nil {
		s.recordFailure("assess")
		return nil, err
	}

	s.deps.Logger.WithFields(logrus.Fields{
		"patient_id":   input.PatientID,
		"pregnancy_id": input.PregnancyID,
	}).Info("Starting risk assessment")

	features, err := s.deps.Features.Engineer(ctx, input)
	if err != nil {
		s.recordFailure("assess")
		return nil, fmt.Errorf("engineering features: %w", err)
	}

	conditions := s.aggregator.weights.Conditions()
	scores, err := s.predictConditions(ctx, conditions, features)
	if err != nil {
		s.recordFailure("assess")
		s.deps.Logger.WithError(err).WithField("patient_id", input.PatientID).Error("Risk assessment failed")
		return nil, err
	}

	byCondition := make(map[domain.Condition]domain.ConditionScore, len(scores))
	for _, sc := range scores {
		byCondition[sc.Condition] = sc
	}
	overall, err := s.aggregator.Aggregate(byCondition)
	if err != nil {
		s.recordFailure("assess")
		return nil, err
	}

	recommendations := s.recommender.Recommend(scores)
	record := BuildAssessment(input.PatientID, input.PregnancyID, scores, overall, recommendations, s.deps.Clock(), s.deps.Registry.Version())

	s.handOff(record)

	duration := time.Since(start)
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordAssessment(record, duration)
	}

	s.deps.Logger.WithFields(logrus.Fields{
		"assessment_id":   record.AssessmentID,
		"patient_id":      record.PatientID,
		"overall_score":   record.OverallScore,
		"risk_level":      record.RiskLevel,
		"recommendations": len(record.Recommendations),
		"processing_time": duration,
	}).Info("Risk assessment completed")

	return record, nil
}

// predictConditions calls every condition model concurrently and returns the
// scores in the order of conditions. The first failure cancels the rest.
func (s *AssessmentService) predictConditions(ctx context.Context, conditions []domain.Condition, features *domain.Features) ([]domain.ConditionScore, error) {
	predictors := make([]domain.ConditionPredictor, len(conditions))
	for i, c := range conditions {
		p, err := s.deps.Registry.ConditionPredictor(c)
		if err != nil {
			return nil, &domain.AggregationError{Err: &domain.PredictionError{Model: c.String(), Condition: c, Err: err}}
		}
		predictors[i] = p
	}

	ctx, cancel := context.WithTimeout(ctx, s.predictionTimeout)
	defer cancel()

	results := make([]domain.ConditionScore, len(conditions))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range conditions {
		i, c := i, c
		g.Go(func() error {
			score, err := callPredictor(gctx, predictors[i], features)
			if err != nil {
				return &domain.PredictionError{Model: c.String(), Condition: c, Err: err}
			}
			if score == nil {
				return &domain.PredictionError{Model: c.String(), Condition: c, Err: errors.New("empty score")}
			}
			sc := *score
			if sc.Condition == "" {
				sc.Condition = c
			}
			if sc.Condition != c {
				return &domain.PredictionError{Model: c.String(), Condition: c, Err: fmt.Errorf("model returned score for %s", sc.Condition)}
			}
			if err := sc.Validate(); err != nil {
				return &domain.PredictionError{Model: c.String(), Condition: c, Err: err}
			}
			results[i] = sc
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, &domain.AggregationError{Err: err}
	}
	return results, nil
}

// callPredictor returns as soon as ctx is done even if the predictor ignores it.
func callPredictor(ctx context.Context, p domain.ConditionPredictor, features *domain.Features) (*domain.ConditionScore, error) {
	type result struct {
		score *domain.ConditionScore
		err   error
	}
	done := make(chan result, 1)
	go func() {
		score, err := p.Predict(ctx, features)
		done <- result{score: score, err: err}
	}()

	select {
	case r := <-done:
		return r.score, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// handOff stores, caches and publishes independent copies of the record in
// the background. Failures are logged and counted, never returned.
func (s *AssessmentService) handOff(record *domain.AssessmentRecord) {
	if s.deps.Store != nil {
		stored := record.Clone()
		s.pending.Add(1)
		go func() {
			defer s.pending.Done()
			ctx, cancel := context.WithTimeout(context.Background(), defaultHandoffTimeout)
			defer cancel()
			if err := s.deps.Store.Save(ctx, stored); err != nil {
				storageErr := &domain.StorageError{Op: "save", Err: err}
				s.deps.Logger.WithError(storageErr).WithField("assessment_id", stored.AssessmentID).Error("Error storing risk assessment")
				if s.deps.Metrics != nil {
					s.deps.Metrics.RecordStorageFailure()
				}
				return
			}
			s.deps.Logger.WithField("assessment_id", stored.AssessmentID).Debug("Risk assessment stored")
		}()
	}

	if s.deps.Cache != nil {
		cached := record.Clone()
		s.pending.Add(1)
		go func() {
			defer s.pending.Done()
			ctx, cancel := context.WithTimeout(context.Background(), defaultHandoffTimeout)
			defer cancel()
			if err := s.deps.Cache.Put(ctx, cached, s.cacheTTL); err != nil {
				cacheErr := &domain.CacheError{Op: "put", Key: domain.AssessmentKey(cached.AssessmentID), Err: err}
				s.deps.Logger.WithError(cacheErr).Error("Error caching assessment")
				if s.deps.Metrics != nil {
					s.deps.Metrics.RecordCacheFailure()
				}
				return
			}
			s.deps.Logger.WithField("assessment_id", cached.AssessmentID).Debug("Assessment cached")
		}()
	}

	if s.deps.Alerts != nil && record.RiskLevel.RequiresAlert() {
		s.deps.Alerts.Publish(record.Clone())
	}
}

// Wait blocks until background store and cache writes have finished.
func (s *AssessmentService) Wait() {
	s.pending.Wait()
}

// GetAssessment returns a stored assessment, trying the cache first.
func (s *AssessmentService) GetAssessment(ctx context.Context, assessmentID string) (*domain.AssessmentRecord, error) {
	if strings.TrimSpace(assessmentID) == "" {
		return nil, domain.NewValidationError("assessment_id", "assessment_id is required", assessmentID)
	}

	if s.deps.Cache != nil {
		record, found, err := s.deps.Cache.Get(ctx, assessmentID)
		if err != nil {
			s.deps.Logger.WithError(&domain.CacheError{Op: "get", Key: domain.AssessmentKey(assessmentID), Err: err}).Warn("Cache lookup failed, falling back to store")
		} else if found {
			return record, nil
		}
	}

	if s.deps.Store == nil {
		return nil, fmt.Errorf("assessment %s: %w", assessmentID, domain.ErrNotFound)
	}
	return s.deps.Store.GetByID(ctx, assessmentID)
}

// PatientHistory returns one page of a patient's assessments, newest first.
func (s *AssessmentService) PatientHistory(ctx context.Context, patientID string, limit, offset int) (*domain.PatientHistory, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, domain.NewValidationError("patient_id", "patient_id is required", patientID)
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		return nil, domain.NewValidationError("offset", "offset must not be negative", offset)
	}
	if s.deps.Store == nil {
		return &domain.PatientHistory{Assessments: []*domain.AssessmentRecord{}, Limit: limit, Offset: offset}, nil
	}

	records, err := s.deps.Store.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing assessments: %w", err)
	}
	total, err := s.deps.Store.CountByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("counting assessments: %w", err)
	}
	if records == nil {
		records = []*domain.AssessmentRecord{}
	}

	return &domain.PatientHistory{
		Assessments: records,
		Total:       total,
		Limit:       limit,
		Offset:      offset,
		HasMore:     int64(offset+limit) < total,
	}, nil
}

// PopulationInsights summarizes stored assessments in [start, end). Zero
// bounds default to the last 30 days.
func (s *AssessmentService) PopulationInsights(ctx context.Context, start, end time.Time) (*domain.PopulationInsights, error) {
	now := s.deps.Clock()
	if end.IsZero() {
		end = now
	}
	if start.IsZero() {
		start = end.Add(-defaultInsightsWindow)
	}
	if !start.Before(end) {
		return nil, domain.NewValidationError("start_date", "start_date must be before end_date", start)
	}
	if s.deps.Store == nil {
		return nil, fmt.Errorf("population insights: no assessment store configured")
	}
	return s.deps.Store.PopulationInsights(ctx, start, end)
}

// ScanEarlyDetection runs the 14-day early-detection sweep.
func (s *AssessmentService) ScanEarlyDetection(ctx context.Context, input *domain.PatientInput) (*domain.EarlyDetectionResult, error) {
	if err := input.Validate(); err != nil {
		s.recordFailure("early_detection")
		return nil, err
	}

	s.deps.Logger.WithField("patient_id", input.PatientID).Info("Starting early detection prediction")

	features, err := s.deps.Features.Engineer(ctx, input)
	if err != nil {
		s.recordFailure("early_detection")
		return nil, fmt.Errorf("engineering features: %w", err)
	}

	predictor, err := s.deps.Registry.EarlyDetection()
	if err != nil {
		s.recordFailure("early_detection")
		return nil, &domain.PredictionError{Model: "early_detection", Err: err}
	}

	now := s.deps.Clock()
	forecasts, err := s.scanner.Scan(ctx, features, predictor, now)
	if err != nil {
		s.recordFailure("early_detection")
		return nil, err
	}

	return &domain.EarlyDetectionResult{
		PatientID:           input.PatientID,
		PregnancyID:         input.PregnancyID,
		PredictionTimestamp: now,
		Predictions:         forecasts,
		ModelVersion:        s.deps.Registry.Version(),
		DetectionWindow:     fmt.Sprintf("%d days", domain.EarlyDetectionWindowDays),
	}, nil
}

// PredictOutcome runs the outcome model and passes its forecast through.
func (s *AssessmentService) PredictOutcome(ctx context.Context, input *domain.PatientInput) (*domain.OutcomeResult, error) {
	if err := input.Validate(); err != nil {
		s.recordFailure("outcome")
		return nil, err
	}

	s.deps.Logger.WithField("patient_id", input.PatientID).Info("Starting outcome prediction")

	features, err := s.deps.Features.Engineer(ctx, input)
	if err != nil {
		s.recordFailure("outcome")
		return nil, fmt.Errorf("engineering features: %w", err)
	}

	predictor, err := s.deps.Registry.Outcome()
	if err != nil {
		s.recordFailure("outcome")
		return nil, &domain.PredictionError{Model: "outcome_prediction", Err: err}
	}

	forecast, err := predictor.PredictOutcome(ctx, features)
	if err != nil {
		s.recordFailure("outcome")
		return nil, &domain.PredictionError{Model: "outcome_prediction", Err: err}
	}

	return &domain.OutcomeResult{
		PatientID:           input.PatientID,
		PregnancyID:         input.PregnancyID,
		PredictionTimestamp: s.deps.Clock(),
		OutcomeForecast:     *forecast,
		ModelVersion:        s.deps.Registry.Version(),
	}, nil
}

// ModelStatus reports the registered models.
func (s *AssessmentService) ModelStatus() []domain.ModelStatus {
	return s.deps.Registry.Status()
}

func (s *AssessmentService) recordFailure(operation string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordFailure(operation)
	}
}

// BuildAssessment assembles an immutable assessment record.
func BuildAssessment(
	patientID, pregnancyID string,
	scores []domain.ConditionScore,
	overall domain.OverallAssessment,
	recommendations []domain.Recommendation,
	now time.Time,
	modelVersion string,
) *domain.AssessmentRecord {
	record := &domain.AssessmentRecord{
		AssessmentID:      NewAssessmentID(patientID, now),
		PatientID:         patientID,
		PregnancyID:       pregnancyID,
		Timestamp:         now,
		OverallAssessment: overall,
		RiskScores:        make([]domain.ConditionScore, len(scores)),
		Recommendations:   append(make([]domain.Recommendation, 0, len(recommendations)), recommendations...),
		NextAssessmentDue: NextDue(overall.RiskLevel, now),
		ModelVersion:      modelVersion,
	}
	for i, sc := range scores {
		sc.ContributingFactors = append([]string(nil), sc.ContributingFactors...)
		sc.EarlyWarningSignals = append([]string(nil), sc.EarlyWarningSignals...)
		record.RiskScores[i] = sc
	}
	return record
}

// NewAssessmentID builds "ra_<date>_<time>_<nonce>_<patient>". The nonce keeps
// ids unique for the same patient within one second; the patient part is
// restricted to [A-Za-z0-9_-] so ids are safe inside namespaced cache keys.
func NewAssessmentID(patientID string, now time.Time) string {
	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("ra_%s_%s_%s", now.UTC().Format("20060102_150405"), nonce, sanitizeKeyPart(patientID))
}

func sanitizeKeyPart(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '-'
		}
	}, s)
}
