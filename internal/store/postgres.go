package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/pregnancycare-risk-service/internal/domain"
)

// PostgresStore implements domain.AssessmentStore using PostgreSQL through database/sql.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL assessment store.
// It expects the schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL assessment store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

const postgresColumns = `assessment_id, patient_id, pregnancy_id, assessed_at,
	overall_score, risk_level, confidence, risk_scores, recommendations,
	next_assessment_due, model_version`

func scanPostgresRecord(s scanner) (*domain.AssessmentRecord, error) {
	record := &domain.AssessmentRecord{}
	var level string
	var scores, recs []byte

	err := s.Scan(
		&record.AssessmentID, &record.PatientID, &record.PregnancyID, &record.Timestamp,
		&record.OverallScore, &level, &record.Confidence, &scores, &recs,
		&record.NextAssessmentDue, &record.ModelVersion,
	)
	if err != nil {
		return nil, err
	}

	record.Timestamp = record.Timestamp.UTC()
	record.NextAssessmentDue = record.NextAssessmentDue.UTC()
	record.RiskLevel = domain.RiskLevel(level)
	if err := DecodeRecordJSON(record, scores, recs); err != nil {
		return nil, err
	}
	return record, nil
}

// Save stores an assessment record.
func (s *PostgresStore) Save(ctx context.Context, record *domain.AssessmentRecord) error {
	enc, err := encodeRecord(record)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO risk_assessments (` + postgresColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = s.db.ExecContext(ctx, query,
		record.AssessmentID,
		record.PatientID,
		record.PregnancyID,
		record.Timestamp,
		record.OverallScore,
		string(record.RiskLevel),
		record.Confidence,
		enc.riskScores,
		enc.recommendations,
		record.NextAssessmentDue,
		record.ModelVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}
	return nil
}

// GetByID retrieves an assessment by its id.
func (s *PostgresStore) GetByID(ctx context.Context, assessmentID string) (*domain.AssessmentRecord, error) {
	query := `SELECT ` + postgresColumns + ` FROM risk_assessments WHERE assessment_id = $1`

	record, err := scanPostgresRecord(s.db.QueryRowContext(ctx, query, assessmentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("assessment %s: %w", assessmentID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return record, nil
}

// ListByPatient returns a patient's assessments newest first.
func (s *PostgresStore) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*domain.AssessmentRecord, error) {
	query := `SELECT ` + postgresColumns + `
		FROM risk_assessments
		WHERE patient_id = $1
		ORDER BY assessed_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := s.db.QueryContext(ctx, query, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	result := make([]*domain.AssessmentRecord, 0)
	for rows.Next() {
		record, err := scanPostgresRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, record)
	}
	return result, rows.Err()
}

// CountByPatient returns the number of stored assessments for a patient.
func (s *PostgresStore) CountByPatient(ctx context.Context, patientID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM risk_assessments WHERE patient_id = $1", patientID).Scan(&count)
	return count, err
}

// PopulationInsights summarizes assessments made in [start, end).
func (s *PostgresStore) PopulationInsights(ctx context.Context, start, end time.Time) (*domain.PopulationInsights, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT patient_id, risk_level, overall_score, risk_scores
		FROM risk_assessments
		WHERE assessed_at >= $1 AND assessed_at < $2
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	builder := NewInsightsBuilder()
	for rows.Next() {
		var patientID, level string
		var overall float64
		var scores []byte
		if err := rows.Scan(&patientID, &level, &overall, &scores); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := builder.Add(patientID, domain.RiskLevel(level), overall, scores); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return builder.Build(start, end), nil
}

// Ping verifies the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
