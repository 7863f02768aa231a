package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditionScore_Validate(t *testing.T) {
	valid := ConditionScore{
		Condition:   Preeclampsia,
		Score:       42,
		Probability: 0.42,
		Confidence:  0.8,
		Trend:       TrendStable,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(s *ConditionScore)
		want   error
	}{
		{"unknown condition", func(s *ConditionScore) { s.Condition = "eclampsia" }, ErrInvalidCondition},
		{"score above 100", func(s *ConditionScore) { s.Score = 100.5 }, ErrScoreOutOfRange},
		{"negative score", func(s *ConditionScore) { s.Score = -1 }, ErrScoreOutOfRange},
		{"probability above 1", func(s *ConditionScore) { s.Probability = 1.2 }, ErrProbabilityRange},
		{"negative confidence", func(s *ConditionScore) { s.Confidence = -0.1 }, ErrConfidenceRange},
		{"unknown trend", func(s *ConditionScore) { s.Trend = "volatile" }, ErrInvalidTrend},
		{"NaN score", func(s *ConditionScore) { s.Score = math.NaN() }, ErrScoreOutOfRange},
		{"infinite score", func(s *ConditionScore) { s.Score = math.Inf(1) }, ErrScoreOutOfRange},
		{"NaN probability", func(s *ConditionScore) { s.Probability = math.NaN() }, ErrProbabilityRange},
		{"NaN confidence", func(s *ConditionScore) { s.Confidence = math.NaN() }, ErrConfidenceRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			err := s.Validate()
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestAssessmentRecord_Clone(t *testing.T) {
	original := &AssessmentRecord{
		AssessmentID: "ra_20260101_120000_abcdef_p1",
		PatientID:    "p1",
		Timestamp:    time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		OverallAssessment: OverallAssessment{
			OverallScore: 73,
			RiskLevel:    RiskHigh,
			Confidence:   0.8,
		},
		RiskScores: []ConditionScore{
			{Condition: Preeclampsia, Score: 85, ContributingFactors: []string{"hypertension"}},
		},
		Recommendations: []Recommendation{{Title: "Increased Blood Pressure Monitoring"}},
	}

	clone := original.Clone()
	require.NotNil(t, clone)
	assert.Equal(t, original, clone)

	clone.RiskScores[0].ContributingFactors[0] = "mutated"
	clone.Recommendations[0].Title = "mutated"

	assert.Equal(t, "hypertension", original.RiskScores[0].ContributingFactors[0])
	assert.Equal(t, "Increased Blood Pressure Monitoring", original.Recommendations[0].Title)

	var nilRecord *AssessmentRecord
	assert.Nil(t, nilRecord.Clone())
}

func TestAssessmentRecord_ScoreFor(t *testing.T) {
	record := &AssessmentRecord{RiskScores: []ConditionScore{
		{Condition: Preeclampsia, Score: 10},
		{Condition: PretermBirth, Score: 30},
	}}

	s, ok := record.ScoreFor(PretermBirth)
	assert.True(t, ok)
	assert.Equal(t, 30.0, s.Score)

	_, ok = record.ScoreFor(GestationalDiabetes)
	assert.False(t, ok)
}

func TestPatientInput_Validate(t *testing.T) {
	newInput := func() *PatientInput {
		return &PatientInput{
			PatientID:   "test-patient-123",
			PregnancyID: "test-pregnancy-123",
			PatientData: &PatientData{Age: 28, BMI: 24.5, GestationalAge: 20},
			VitalSigns:  &VitalSigns{},
		}
	}

	require.NoError(t, newInput().Validate())

	tests := []struct {
		name   string
		mutate func(in *PatientInput)
		field  string
	}{
		{"missing patient id", func(in *PatientInput) { in.PatientID = " " }, "patient_id"},
		{"missing pregnancy id", func(in *PatientInput) { in.PregnancyID = "" }, "pregnancy_id"},
		{"missing patient data", func(in *PatientInput) { in.PatientData = nil }, "patient_data"},
		{"missing vitals", func(in *PatientInput) { in.VitalSigns = nil }, "patient_data"},
		{"implausible age", func(in *PatientInput) { in.PatientData.Age = 0 }, "patient_data.age"},
		{"non-positive bmi", func(in *PatientInput) { in.PatientData.BMI = 0 }, "patient_data.bmi"},
		{"gestational age too large", func(in *PatientInput) { in.PatientData.GestationalAge = 50 }, "patient_data.gestational_age"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := newInput()
			tt.mutate(in)

			var vErr *ValidationError
			require.True(t, errors.As(in.Validate(), &vErr))
			assert.Equal(t, tt.field, vErr.Field)
		})
	}

	var nilInput *PatientInput
	assert.Error(t, nilInput.Validate())
}

func TestFeatures_Accessors(t *testing.T) {
	f := &Features{
		Numeric: map[string]float64{"bmi": 31},
		Flags:   map[string]bool{"chronic_hypertension": true},
	}

	v, ok := f.Value("bmi")
	assert.True(t, ok)
	assert.Equal(t, 31.0, v)

	_, ok = f.Value("glucose_level")
	assert.False(t, ok)

	assert.True(t, f.Flag("chronic_hypertension"))
	assert.False(t, f.Flag("prior_preeclampsia"))

	var empty *Features
	_, ok = empty.Value("bmi")
	assert.False(t, ok)
	assert.False(t, empty.Flag("x"))
}
