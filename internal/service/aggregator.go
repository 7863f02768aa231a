package service

import (
	"fmt"
	"math"
	"sort"

	"github.com/pregnancycare-risk-service/internal/domain"
)

// weightSumTolerance absorbs float rounding when weights are read from configuration.
const weightSumTolerance = 1e-9

// WeightTable maps each scored condition to its share of the overall score.
type WeightTable map[domain.Condition]float64

// DefaultWeights is the clinical weighting used when no table is configured.
func DefaultWeights() WeightTable {
	return WeightTable{
		domain.Preeclampsia:        0.4,
		domain.GestationalDiabetes: 0.3,
		domain.PretermBirth:        0.3,
	}
}

// WeightsFromConfig converts a configured name -> weight map into a validated table.
// An empty map yields DefaultWeights.
func WeightsFromConfig(raw map[string]float64) (WeightTable, error) {
	if len(raw) == 0 {
		return DefaultWeights(), nil
	}
	table := make(WeightTable, len(raw))
	for name, w := range raw {
		table[domain.Condition(name)] = w
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// Validate enforces that weights cover exactly the scored conditions, are
// finite and non-negative, and sum to 1.0.
func (w WeightTable) Validate() error {
	if len(w) == 0 {
		return fmt.Errorf("%w: no weights", domain.ErrInvalidWeightTable)
	}
	sum := 0.0
	for c, weight := range w {
		if !c.IsValid() {
			return fmt.Errorf("%w: unknown condition %q", domain.ErrInvalidWeightTable, c)
		}
		if weight < 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
			return fmt.Errorf("%w: weight for %s is %v", domain.ErrInvalidWeightTable, c, weight)
		}
		sum += weight
	}
	for _, c := range domain.Conditions() {
		if _, ok := w[c]; !ok {
			return fmt.Errorf("%w: missing weight for %s", domain.ErrInvalidWeightTable, c)
		}
	}
	if math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("%w: weights sum to %v, want 1.0", domain.ErrInvalidWeightTable, sum)
	}
	return nil
}

// Conditions returns the weighted conditions in the fixed presentation order.
func (w WeightTable) Conditions() []domain.Condition {
	conditions := make([]domain.Condition, 0, len(w))
	for c := range w {
		conditions = append(conditions, c)
	}
	order := make(map[domain.Condition]int)
	for i, c := range domain.Conditions() {
		order[c] = i
	}
	sort.Slice(conditions, func(i, j int) bool {
		return order[conditions[i]] < order[conditions[j]]
	})
	return conditions
}

// RiskAggregator combines per-condition scores into one overall assessment.
// It holds no mutable state and is safe for concurrent use.
type RiskAggregator struct {
	weights WeightTable
}

// NewRiskAggregator validates the weight table and returns an aggregator.
func NewRiskAggregator(weights WeightTable) (*RiskAggregator, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	copied := make(WeightTable, len(weights))
	for c, w := range weights {
		copied[c] = w
	}
	return &RiskAggregator{weights: copied}, nil
}

// Weights returns a copy of the aggregator's weight table.
func (a *RiskAggregator) Weights() WeightTable {
	copied := make(WeightTable, len(a.weights))
	for c, w := range a.weights {
		copied[c] = w
	}
	return copied
}

// Aggregate computes the weighted overall score, its band and the mean confidence.
// Every weighted condition must be present in scores with in-range values.
func (a *RiskAggregator) Aggregate(scores map[domain.Condition]domain.ConditionScore) (domain.OverallAssessment, error) {
	conditions := a.weights.Conditions()

	overall := 0.0
	confidence := 0.0
	for _, c := range conditions {
		s, ok := scores[c]
		if !ok {
			return domain.OverallAssessment{}, &domain.AggregationError{
				Err: &domain.PredictionError{Model: c.String(), Condition: c, Err: fmt.Errorf("no score for %s", c)},
			}
		}
		if err := s.Validate(); err != nil {
			return domain.OverallAssessment{}, &domain.AggregationError{
				Err: &domain.PredictionError{Model: c.String(), Condition: c, Err: err},
			}
		}
		overall += a.weights[c] * s.Score
		confidence += s.Confidence
	}
	confidence /= float64(len(conditions))

	return domain.OverallAssessment{
		OverallScore: overall,
		RiskLevel:    LevelForScore(overall),
		Confidence:   confidence,
	}, nil
}

// LevelForScore bands an overall score, evaluated from the most severe band down.
func LevelForScore(score float64) domain.RiskLevel {
	switch {
	case score >= 80:
		return domain.RiskCritical
	case score >= 60:
		return domain.RiskHigh
	case score >= 30:
		return domain.RiskModerate
	default:
		return domain.RiskLow
	}
}
