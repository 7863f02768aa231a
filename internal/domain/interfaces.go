package domain

import (
	"context"
	"time"
)

// ConditionPredictor scores the risk of one condition from engineered features.
type ConditionPredictor interface {
	Predict(ctx context.Context, features *Features) (*ConditionScore, error)
}

// EarlyDetectionPredictor forecasts condition probabilities a number of days ahead.
type EarlyDetectionPredictor interface {
	PredictTimeframe(ctx context.Context, features *Features, daysAhead int) (*TimeframeForecast, error)
}

// OutcomePredictor forecasts delivery, maternal and fetal outcomes.
type OutcomePredictor interface {
	PredictOutcome(ctx context.Context, features *Features) (*OutcomeForecast, error)
}

// FeatureEngineer derives model-ready features from raw patient input.
type FeatureEngineer interface {
	Engineer(ctx context.Context, input *PatientInput) (*Features, error)
}

// ModelRegistry resolves the models used by an assessment.
type ModelRegistry interface {
	ConditionPredictor(condition Condition) (ConditionPredictor, error)
	EarlyDetection() (EarlyDetectionPredictor, error)
	Outcome() (OutcomePredictor, error)
	Version() string
	Status() []ModelStatus
}

// AssessmentStore persists assessment records.
type AssessmentStore interface {
	Save(ctx context.Context, record *AssessmentRecord) error
	GetByID(ctx context.Context, assessmentID string) (*AssessmentRecord, error)
	ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*AssessmentRecord, error)
	CountByPatient(ctx context.Context, patientID string) (int64, error)
	PopulationInsights(ctx context.Context, start, end time.Time) (*PopulationInsights, error)
	Ping(ctx context.Context) error
}

// AssessmentCache keeps recently produced assessments for fast retrieval.
// Get returns (nil, false, nil) on a miss.
type AssessmentCache interface {
	Put(ctx context.Context, record *AssessmentRecord, ttl time.Duration) error
	Get(ctx context.Context, assessmentID string) (*AssessmentRecord, bool, error)
	Ping(ctx context.Context) error
}

// AssessmentKey returns the cache key of an assessment.
func AssessmentKey(assessmentID string) string {
	return "assessment:" + assessmentID
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetModelConfig() *ModelConfig
	GetServerConfig() *ServerConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetDatabaseURL() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
