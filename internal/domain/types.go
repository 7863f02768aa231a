// Package domain contains the core entities of obstetric risk assessment:
// per-condition risk scores, the aggregated assessment, recommendations and
// the day-by-day early-detection forecasts.
//
// Every enumerated value is a string type with an IsValid method so that
// values read back from storage, caches or model services can be checked
// before they reach clinical decision logic.
package domain

import (
	"errors"
)

// Condition identifies a pregnancy complication that is risk-scored by its own model.
type Condition string

const (
	Preeclampsia        Condition = "preeclampsia"
	GestationalDiabetes Condition = "gestational_diabetes"
	PretermBirth        Condition = "preterm_birth"
)

// Conditions returns the scored conditions in their fixed presentation order.
// Assessments always store and return scores in this order.
func Conditions() []Condition {
	return []Condition{Preeclampsia, GestationalDiabetes, PretermBirth}
}

// IsValid reports whether c is one of the scored conditions.
func (c Condition) IsValid() bool {
	switch c {
	case Preeclampsia, GestationalDiabetes, PretermBirth:
		return true
	default:
		return false
	}
}

// String returns the wire name of the condition.
func (c Condition) String() string {
	return string(c)
}

// RiskLevel is one of four ordered severity bands derived from the overall score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskLevels returns all levels from least to most severe.
func RiskLevels() []RiskLevel {
	return []RiskLevel{RiskLow, RiskModerate, RiskHigh, RiskCritical}
}

// IsValid reports whether the level is one of the four bands.
func (l RiskLevel) IsValid() bool {
	return l.Rank() >= 0
}

// Rank orders levels low < moderate < high < critical. Unknown levels rank -1.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskLow:
		return 0
	case RiskModerate:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	default:
		return -1
	}
}

// RequiresAlert reports whether an assessment at this level is pushed to alert subscribers.
func (l RiskLevel) RequiresAlert() bool {
	return l == RiskHigh || l == RiskCritical
}

func (l RiskLevel) String() string {
	return string(l)
}

// Trend is the direction of a condition's risk over recent history, as reported by its model.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendWorsening Trend = "worsening"
)

// IsValid reports whether the trend is a known direction.
func (t Trend) IsValid() bool {
	switch t {
	case TrendImproving, TrendStable, TrendWorsening:
		return true
	default:
		return false
	}
}

// Priority ranks a recommendation's urgency.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// IsValid reports whether the priority is known.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// EvidenceLevel is the clinical-guideline strength grade attached to a recommendation.
type EvidenceLevel string

const (
	EvidenceA EvidenceLevel = "A"
	EvidenceB EvidenceLevel = "B"
	EvidenceC EvidenceLevel = "C"
)

// IsValid reports whether the grade is known.
func (e EvidenceLevel) IsValid() bool {
	switch e {
	case EvidenceA, EvidenceB, EvidenceC:
		return true
	default:
		return false
	}
}

// Validation errors for score integrity
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidCondition    = errors.New("invalid condition")
	ErrInvalidRiskLevel    = errors.New("invalid risk level")
	ErrInvalidTrend        = errors.New("invalid trend")
	ErrScoreOutOfRange     = errors.New("score out of range [0, 100]")
	ErrProbabilityRange    = errors.New("probability out of range [0, 1]")
	ErrConfidenceRange     = errors.New("confidence out of range [0, 1]")
	ErrInvalidWeightTable  = errors.New("invalid condition weight table")
	ErrInvalidDaysAhead    = errors.New("days ahead outside early-detection window")
	ErrModelNotRegistered  = errors.New("model not registered")
	ErrPredictorNotCapable = errors.New("model does not implement the requested capability")
)
