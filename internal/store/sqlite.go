package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pregnancycare-risk-service/internal/domain"
)

// SQLiteStore implements domain.AssessmentStore using an embedded SQLite file.
// Timestamps are stored as unix microseconds so range queries compare numerically.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite assessment store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS risk_assessments (
		assessment_id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL,
		pregnancy_id TEXT NOT NULL,
		assessed_at INTEGER NOT NULL,
		overall_score REAL NOT NULL,
		risk_level TEXT NOT NULL,
		confidence REAL NOT NULL,
		risk_scores TEXT NOT NULL,
		recommendations TEXT NOT NULL,
		next_assessment_due INTEGER NOT NULL,
		model_version TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_risk_assessments_patient ON risk_assessments(patient_id, assessed_at DESC);
	CREATE INDEX IF NOT EXISTS idx_risk_assessments_assessed_at ON risk_assessments(assessed_at);
	`

	_, err := db.Exec(schema)
	return err
}

const sqliteColumns = `assessment_id, patient_id, pregnancy_id, assessed_at,
	overall_score, risk_level, confidence, risk_scores, recommendations,
	next_assessment_due, model_version`

func scanSQLiteRecord(s scanner) (*domain.AssessmentRecord, error) {
	record := &domain.AssessmentRecord{}
	var assessedAt, nextDue int64
	var level string
	var scores, recs []byte

	err := s.Scan(
		&record.AssessmentID, &record.PatientID, &record.PregnancyID, &assessedAt,
		&record.OverallScore, &level, &record.Confidence, &scores, &recs,
		&nextDue, &record.ModelVersion,
	)
	if err != nil {
		return nil, err
	}

	record.Timestamp = time.UnixMicro(assessedAt).UTC()
	record.NextAssessmentDue = time.UnixMicro(nextDue).UTC()
	record.RiskLevel = domain.RiskLevel(level)
	if err := DecodeRecordJSON(record, scores, recs); err != nil {
		return nil, err
	}
	return record, nil
}

// Save stores an assessment record.
func (s *SQLiteStore) Save(ctx context.Context, record *domain.AssessmentRecord) error {
	enc, err := encodeRecord(record)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO risk_assessments (`+sqliteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.AssessmentID,
		record.PatientID,
		record.PregnancyID,
		record.Timestamp.UnixMicro(),
		record.OverallScore,
		string(record.RiskLevel),
		record.Confidence,
		string(enc.riskScores),
		string(enc.recommendations),
		record.NextAssessmentDue.UnixMicro(),
		record.ModelVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}
	return nil
}

// GetByID retrieves an assessment by its id.
func (s *SQLiteStore) GetByID(ctx context.Context, assessmentID string) (*domain.AssessmentRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sqliteColumns+`
		FROM risk_assessments
		WHERE assessment_id = ?
	`, assessmentID)

	record, err := scanSQLiteRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("assessment %s: %w", assessmentID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return record, nil
}

// ListByPatient returns a patient's assessments newest first.
func (s *SQLiteStore) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*domain.AssessmentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteColumns+`
		FROM risk_assessments
		WHERE patient_id = ?
		ORDER BY assessed_at DESC
		LIMIT ? OFFSET ?
	`, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	result := make([]*domain.AssessmentRecord, 0)
	for rows.Next() {
		record, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, record)
	}
	return result, rows.Err()
}

// CountByPatient returns the number of stored assessments for a patient.
func (s *SQLiteStore) CountByPatient(ctx context.Context, patientID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM risk_assessments WHERE patient_id = ?", patientID).Scan(&count)
	return count, err
}

// PopulationInsights summarizes assessments made in [start, end).
func (s *SQLiteStore) PopulationInsights(ctx context.Context, start, end time.Time) (*domain.PopulationInsights, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT patient_id, risk_level, overall_score, risk_scores
		FROM risk_assessments
		WHERE assessed_at >= ? AND assessed_at < ?
	`, start.UnixMicro(), end.UnixMicro())
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
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
