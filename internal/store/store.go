// Package store persists assessment records through database/sql, either in
// an embedded SQLite file or in PostgreSQL via lib/pq.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pregnancycare-risk-service/internal/domain"
)

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// encodedRecord holds the JSON columns of an assessment row.
type encodedRecord struct {
	riskScores      []byte
	recommendations []byte
}

func encodeRecord(record *domain.AssessmentRecord) (*encodedRecord, error) {
	scores, err := json.Marshal(record.RiskScores)
	if err != nil {
		return nil, fmt.Errorf("failed to encode risk scores: %w", err)
	}
	recs := record.Recommendations
	if recs == nil {
		recs = []domain.Recommendation{}
	}
	recommendations, err := json.Marshal(recs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode recommendations: %w", err)
	}
	return &encodedRecord{riskScores: scores, recommendations: recommendations}, nil
}

// DecodeRecordJSON fills the JSON-encoded columns of a scanned record.
func DecodeRecordJSON(record *domain.AssessmentRecord, riskScores, recommendations []byte) error {
	if err := json.Unmarshal(riskScores, &record.RiskScores); err != nil {
		return fmt.Errorf("failed to decode risk scores: %w", err)
	}
	if err := json.Unmarshal(recommendations, &record.Recommendations); err != nil {
		return fmt.Errorf("failed to decode recommendations: %w", err)
	}
	if record.Recommendations == nil {
		record.Recommendations = []domain.Recommendation{}
	}
	if !record.RiskLevel.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidRiskLevel, record.RiskLevel)
	}
	return nil
}

// InsightsBuilder accumulates stored rows into population insights.
type InsightsBuilder struct {
	total      int64
	patients   map[string]struct{}
	levels     map[domain.RiskLevel]int64
	overallSum float64
	condSum    map[domain.Condition]float64
	condCount  map[domain.Condition]int64
}

// NewInsightsBuilder creates an empty builder.
func NewInsightsBuilder() *InsightsBuilder {
	levels := make(map[domain.RiskLevel]int64)
	for _, l := range domain.RiskLevels() {
		levels[l] = 0
	}
	return &InsightsBuilder{
		patients:  make(map[string]struct{}),
		levels:    levels,
		condSum:   make(map[domain.Condition]float64),
		condCount: make(map[domain.Condition]int64),
	}
}

// Add records one stored assessment.
func (b *InsightsBuilder) Add(patientID string, level domain.RiskLevel, overall float64, riskScores []byte) error {
	var scores []domain.ConditionScore
	if err := json.Unmarshal(riskScores, &scores); err != nil {
		return fmt.Errorf("failed to decode risk scores: %w", err)
	}
	b.total++
	b.patients[patientID] = struct{}{}
	b.levels[level]++
	b.overallSum += overall
	for _, s := range scores {
		b.condSum[s.Condition] += s.Score
		b.condCount[s.Condition]++
	}
	return nil
}

// Build returns the insights for the window [start, end).
func (b *InsightsBuilder) Build(start, end time.Time) *domain.PopulationInsights {
	insights := &domain.PopulationInsights{
		Start:               start,
		End:                 end,
		TotalAssessments:    b.total,
		UniquePatients:      int64(len(b.patients)),
		RiskLevelCounts:     b.levels,
		MeanConditionScores: make(map[domain.Condition]float64, len(b.condSum)),
	}
	if b.total > 0 {
		insights.MeanOverallScore = b.overallSum / float64(b.total)
	}
	for c, sum := range b.condSum {
		insights.MeanConditionScores[c] = sum / float64(b.condCount[c])
	}
	return insights
}
