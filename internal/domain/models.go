package domain

import (
	"fmt"
	"math"
	"time"
)

// EarlyDetectionWindowDays is the fixed forward horizon of the early-detection sweep.
const EarlyDetectionWindowDays = 14

// ConditionScore is the output of one condition predictor for one assessment.
type ConditionScore struct {
	Condition           Condition `json:"condition"`
	Score               float64   `json:"score"`
	Probability         float64   `json:"probability"`
	Confidence          float64   `json:"confidence"`
	Trend               Trend     `json:"trend"`
	ContributingFactors []string  `json:"contributing_factors"`
	EarlyWarningSignals []string  `json:"early_warning_signals"`
}

// Validate checks the documented ranges of a predictor result.
func (s ConditionScore) Validate() error {
	if !s.Condition.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidCondition, s.Condition)
	}
	if !inRange(s.Score, 0, 100) {
		return fmt.Errorf("%w: %v", ErrScoreOutOfRange, s.Score)
	}
	if !inRange(s.Probability, 0, 1) {
		return fmt.Errorf("%w: %v", ErrProbabilityRange, s.Probability)
	}
	if !inRange(s.Confidence, 0, 1) {
		return fmt.Errorf("%w: %v", ErrConfidenceRange, s.Confidence)
	}
	if !s.Trend.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidTrend, s.Trend)
	}
	return nil
}

// inRange reports whether v is a finite number within [lo, hi]. NaN fails.
func inRange(v, lo, hi float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= lo && v <= hi
}

func (s ConditionScore) clone() ConditionScore {
	s.ContributingFactors = append([]string(nil), s.ContributingFactors...)
	s.EarlyWarningSignals = append([]string(nil), s.EarlyWarningSignals...)
	return s
}

// OverallAssessment is the weighted combination of the per-condition scores.
type OverallAssessment struct {
	OverallScore float64   `json:"overall_risk_score"`
	RiskLevel    RiskLevel `json:"risk_level"`
	Confidence   float64   `json:"confidence"`
}

// Recommendation is a single rule-based clinical suggestion.
type Recommendation struct {
	Type          string        `json:"type"`
	Priority      Priority      `json:"priority"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	EvidenceLevel EvidenceLevel `json:"evidence_level"`
}

// AssessmentRecord is the persisted unit produced by one risk assessment.
// It is not modified after construction; collaborators that retain it take a Clone.
type AssessmentRecord struct {
	AssessmentID string    `json:"assessment_id"`
	PatientID    string    `json:"patient_id"`
	PregnancyID  string    `json:"pregnancy_id"`
	Timestamp    time.Time `json:"timestamp"`
	OverallAssessment
	RiskScores        []ConditionScore `json:"risk_scores"`
	Recommendations   []Recommendation `json:"recommendations"`
	NextAssessmentDue time.Time        `json:"next_assessment_due"`
	ModelVersion      string           `json:"model_version"`
}

// Clone returns a deep copy that shares no slices with the receiver.
func (r *AssessmentRecord) Clone() *AssessmentRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.RiskScores = make([]ConditionScore, len(r.RiskScores))
	for i, s := range r.RiskScores {
		c.RiskScores[i] = s.clone()
	}
	c.Recommendations = append([]Recommendation(nil), r.Recommendations...)
	return &c
}

// ScoreFor returns the score recorded for a condition.
func (r *AssessmentRecord) ScoreFor(c Condition) (ConditionScore, bool) {
	for _, s := range r.RiskScores {
		if s.Condition == c {
			return s, true
		}
	}
	return ConditionScore{}, false
}

// ConditionForecast is a (probability, confidence) pair for one condition on one day.
type ConditionForecast struct {
	Probability float64 `json:"probability"`
	Confidence  float64 `json:"confidence"`
}

// TimeframeForecast is one day-ahead entry of the early-detection sweep.
type TimeframeForecast struct {
	DaysAhead          int                             `json:"days_ahead"`
	Date               time.Time                       `json:"date"`
	Conditions         map[Condition]ConditionForecast `json:"conditions"`
	OverallProbability float64                         `json:"overall_probability"`
	Confidence         float64                         `json:"confidence"`
}

// OutcomeForecast holds delivery, maternal and fetal sub-predictions. Their
// contents are produced by the outcome model and passed through unchanged.
type OutcomeForecast struct {
	Delivery                 map[string]any `json:"delivery_predictions"`
	Maternal                 map[string]any `json:"maternal_outcomes"`
	Fetal                    map[string]any `json:"fetal_outcomes"`
	RecommendedInterventions []string       `json:"recommended_interventions"`
	Confidence               float64        `json:"confidence"`
}

// EarlyDetectionResult is the response envelope of a 14-day sweep.
type EarlyDetectionResult struct {
	PatientID           string              `json:"patient_id"`
	PregnancyID         string              `json:"pregnancy_id"`
	PredictionTimestamp time.Time           `json:"prediction_timestamp"`
	Predictions         []TimeframeForecast `json:"predictions"`
	ModelVersion        string              `json:"model_version"`
	DetectionWindow     string              `json:"detection_window"`
}

// OutcomeResult is the response envelope of an outcome prediction.
type OutcomeResult struct {
	PatientID           string    `json:"patient_id"`
	PregnancyID         string    `json:"pregnancy_id"`
	PredictionTimestamp time.Time `json:"prediction_timestamp"`
	OutcomeForecast
	ModelVersion string `json:"model_version"`
}

// PatientHistory is a page of a patient's stored assessments, newest first.
type PatientHistory struct {
	Assessments []*AssessmentRecord `json:"data"`
	Total       int64               `json:"total"`
	Limit       int                 `json:"limit"`
	Offset      int                 `json:"offset"`
	HasMore     bool                `json:"has_more"`
}

// PopulationInsights summarizes stored assessments over a time window.
type PopulationInsights struct {
	Start               time.Time             `json:"start_date"`
	End                 time.Time             `json:"end_date"`
	TotalAssessments    int64                 `json:"total_assessments"`
	UniquePatients      int64                 `json:"unique_patients"`
	RiskLevelCounts     map[RiskLevel]int64   `json:"risk_level_counts"`
	MeanOverallScore    float64               `json:"mean_overall_score"`
	MeanConditionScores map[Condition]float64 `json:"mean_condition_scores"`
}

// ModelStatus describes one registered model.
type ModelStatus struct {
	Name         string `json:"name"`
	Version      string `json:"version"`
	Loaded       bool   `json:"loaded"`
	BreakerState string `json:"breaker_state,omitempty"`
}
