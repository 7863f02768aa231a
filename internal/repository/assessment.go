// Package repository persists assessment records in PostgreSQL through pgx.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/pregnancycare-risk-service/internal/domain"
	"github.com/pregnancycare-risk-service/internal/store"
)

// AssessmentRepository handles assessment persistence and implements domain.AssessmentStore.
type AssessmentRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewAssessmentRepository creates a new assessment repository
func NewAssessmentRepository(db *pgxpool.Pool, logger *logrus.Logger) *AssessmentRepository {
	return &AssessmentRepository{
		db:  db,
		log: logger,
	}
}

const assessmentColumns = `assessment_id, patient_id, pregnancy_id, assessed_at,
		overall_score, risk_level, confidence, risk_scores, recommendations,
		next_assessment_due, model_version`

// Save inserts a new assessment into the database
func (r *AssessmentRepository) Save(ctx context.Context, record *domain.AssessmentRecord) error {
	riskScoresJSON, err := json.Marshal(record.RiskScores)
	if err != nil {
		return fmt.Errorf("marshaling risk scores: %w", err)
	}

	recommendations := record.Recommendations
	if recommendations == nil {
		recommendations = []domain.Recommendation{}
	}
	recommendationsJSON, err := json.Marshal(recommendations)
	if err != nil {
		return fmt.Errorf("marshaling recommendations: %w", err)
	}

	query := `
		INSERT INTO risk_assessments (` + assessmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = r.db.Exec(ctx, query,
		record.AssessmentID,
		record.PatientID,
		record.PregnancyID,
		record.Timestamp,
		record.OverallScore,
		string(record.RiskLevel),
		record.Confidence,
		riskScoresJSON,
		recommendationsJSON,
		record.NextAssessmentDue,
		record.ModelVersion,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"assessment_id": record.AssessmentID,
			"patient_id":    record.PatientID,
			"risk_level":    record.RiskLevel,
			"error":         err,
		}).Error("Failed to create assessment")
		return fmt.Errorf("creating assessment: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"assessment_id": record.AssessmentID,
		"patient_id":    record.PatientID,
		"risk_level":    record.RiskLevel,
		"overall_score": record.OverallScore,
	}).Debug("Assessment stored successfully")

	return nil
}

func scanAssessment(row pgx.Row) (*domain.AssessmentRecord, error) {
	var record domain.AssessmentRecord
	var level string
	var riskScoresJSON, recommendationsJSON []byte

	err := row.Scan(
		&record.AssessmentID,
		&record.PatientID,
		&record.PregnancyID,
		&record.Timestamp,
		&record.OverallScore,
		&level,
		&record.Confidence,
		&riskScoresJSON,
		&recommendationsJSON,
		&record.NextAssessmentDue,
		&record.ModelVersion,
	)
	if err != nil {
		return nil, err
	}

	record.Timestamp = record.Timestamp.UTC()
	record.NextAssessmentDue = record.NextAssessmentDue.UTC()
	record.RiskLevel = domain.RiskLevel(level)
	if err := store.DecodeRecordJSON(&record, riskScoresJSON, recommendationsJSON); err != nil {
		return nil, err
	}
	return &record, nil
}

// GetByID retrieves an assessment by its id
func (r *AssessmentRepository) GetByID(ctx context.Context, assessmentID string) (*domain.AssessmentRecord, error) {
	query := `SELECT ` + assessmentColumns + ` FROM risk_assessments WHERE assessment_id = $1`

	record, err := scanAssessment(r.db.QueryRow(ctx, query, assessmentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("assessment %s: %w", assessmentID, domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"assessment_id": assessmentID,
			"error":         err,
		}).Error("Failed to retrieve assessment")
		return nil, fmt.Errorf("retrieving assessment: %w", err)
	}
	return record, nil
}

// ListByPatient retrieves a page of a patient's assessments, newest first
func (r *AssessmentRepository) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*domain.AssessmentRecord, error) {
	query := `
		SELECT ` + assessmentColumns + `
		FROM risk_assessments
		WHERE patient_id = $1
		ORDER BY assessed_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying assessments: %w", err)
	}
	defer rows.Close()

	records := make([]*domain.AssessmentRecord, 0)
	for rows.Next() {
		record, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning assessment: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating assessments: %w", err)
	}

	return records, nil
}

// CountByPatient returns how many assessments a patient has
func (r *AssessmentRepository) CountByPatient(ctx context.Context, patientID string) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM risk_assessments WHERE patient_id = $1`, patientID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting assessments: %w", err)
	}
	return count, nil
}

// PopulationInsights aggregates level counts and mean scores for [start, end).
// Level counts and the overall mean are computed in SQL; per-condition means
// are expanded from the JSONB score array.
func (r *AssessmentRepository) PopulationInsights(ctx context.Context, start, end time.Time) (*domain.PopulationInsights, error) {
	insights := &domain.PopulationInsights{
		Start:               start,
		End:                 end,
		RiskLevelCounts:     make(map[domain.RiskLevel]int64),
		MeanConditionScores: make(map[domain.Condition]float64),
	}
	for _, l := range domain.RiskLevels() {
		insights.RiskLevelCounts[l] = 0
	}

	var mean *float64
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT patient_id), AVG(overall_score)
		FROM risk_assessments
		WHERE assessed_at >= $1 AND assessed_at < $2`, start, end,
	).Scan(&insights.TotalAssessments, &insights.UniquePatients, &mean)
	if err != nil {
		return nil, fmt.Errorf("querying assessment totals: %w", err)
	}
	if mean != nil {
		insights.MeanOverallScore = *mean
	}

	levelRows, err := r.db.Query(ctx, `
		SELECT risk_level, COUNT(*)
		FROM risk_assessments
		WHERE assessed_at >= $1 AND assessed_at < $2
		GROUP BY risk_level`, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying risk level counts: %w", err)
	}
	defer levelRows.Close()
	for levelRows.Next() {
		var level string
		var count int64
		if err := levelRows.Scan(&level, &count); err != nil {
			return nil, fmt.Errorf("scanning risk level count: %w", err)
		}
		insights.RiskLevelCounts[domain.RiskLevel(level)] = count
	}
	if err := levelRows.Err(); err != nil {
		return nil, err
	}

	conditionRows, err := r.db.Query(ctx, `
		SELECT s->>'condition', AVG((s->>'score')::double precision)
		FROM risk_assessments, jsonb_array_elements(risk_scores) AS s
		WHERE assessed_at >= $1 AND assessed_at < $2
		GROUP BY s->>'condition'`, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying condition means: %w", err)
	}
	defer conditionRows.Close()
	for conditionRows.Next() {
		var condition string
		var avg float64
		if err := conditionRows.Scan(&condition, &avg); err != nil {
			return nil, fmt.Errorf("scanning condition mean: %w", err)
		}
		insights.MeanConditionScores[domain.Condition(condition)] = avg
	}
	if err := conditionRows.Err(); err != nil {
		return nil, err
	}

	return insights, nil
}

// Ping checks the database connection
func (r *AssessmentRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
