package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pregnancycare-risk-service/internal/domain"
)

// MockRiskService is a mock implementation of RiskService
type MockRiskService struct {
	mock.Mock
}

func (m *MockRiskService) Assess(ctx context.Context, input *domain.PatientInput) (*domain.AssessmentRecord, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AssessmentRecord), args.Error(1)
}

func (m *MockRiskService) ScanEarlyDetection(ctx context.Context, input *domain.PatientInput) (*domain.EarlyDetectionResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EarlyDetectionResult), args.Error(1)
}

func (m *MockRiskService) PredictOutcome(ctx context.Context, input *domain.PatientInput) (*domain.OutcomeResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OutcomeResult), args.Error(1)
}

func newTestServer(svc RiskService) *Server {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewServer(svc, "test", logger)
}

func textOf(t *testing.T, result *mcp.CallToolResult, i int) string {
	t.Helper()
	require.Greater(t, len(result.Content), i)
	text, ok := result.Content[i].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestNewServer(t *testing.T) {
	server := newTestServer(&MockRiskService{})
	assert.NotNil(t, server.mcpServer)
	assert.NotNil(t, server.logger)
}

func TestHandleAssess(t *testing.T) {
	ctx := context.Background()
	input := PatientParams{PatientID: "p-1", PregnancyID: "preg-1"}
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	t.Run("Success", func(t *testing.T) {
		svc := &MockRiskService{}
		record := &domain.AssessmentRecord{
			AssessmentID: "ra_20240315_100000_abcd1234_p-1",
			PatientID:    "p-1",
			OverallAssessment: domain.OverallAssessment{
				OverallScore: 67,
				RiskLevel:    domain.RiskHigh,
				Confidence:   0.85,
			},
			Recommendations:   []domain.Recommendation{{Title: "Blood pressure monitoring"}},
			NextAssessmentDue: now.Add(24 * time.Hour),
		}
		svc.On("Assess", ctx, mock.MatchedBy(func(in *domain.PatientInput) bool { return in.PatientID == "p-1" })).Return(record, nil)

		result, out, err := newTestServer(svc).handleAssess(ctx, &mcp.CallToolRequest{}, input)
		require.NoError(t, err)
		assert.False(t, result.IsError)
		assert.Same(t, record, out)

		summary := textOf(t, result, 0)
		assert.Contains(t, summary, "high risk")
		assert.Contains(t, summary, "Blood pressure monitoring")
		assert.Contains(t, textOf(t, result, 1), `"assessment_id"`)
		svc.AssertExpectations(t)
	})

	t.Run("Failure_Is_Tool_Error", func(t *testing.T) {
		svc := &MockRiskService{}
		svc.On("Assess", ctx, mock.Anything).Return(nil, &domain.AggregationError{Err: errors.New("model down")})

		result, out, err := newTestServer(svc).handleAssess(ctx, &mcp.CallToolRequest{}, input)
		require.NoError(t, err)
		assert.Nil(t, out)
		assert.True(t, result.IsError)
		assert.Contains(t, textOf(t, result, 0), "model down")
	})
}

func TestHandleEarlyDetection(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	predictions := make([]domain.TimeframeForecast, domain.EarlyDetectionWindowDays)
	for i := range predictions {
		predictions[i] = domain.TimeframeForecast{
			DaysAhead:          i + 1,
			Date:               start.AddDate(0, 0, i+1),
			OverallProbability: 0.1,
		}
	}
	predictions[6].OverallProbability = 0.4

	svc := &MockRiskService{}
	svc.On("ScanEarlyDetection", ctx, mock.Anything).Return(&domain.EarlyDetectionResult{
		PatientID:       "p-1",
		Predictions:     predictions,
		DetectionWindow: "14 days",
	}, nil)

	result, _, err := newTestServer(svc).handleEarlyDetection(ctx, &mcp.CallToolRequest{}, PatientParams{PatientID: "p-1"})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, textOf(t, result, 0), "day 7 (2024-03-22)")
}

func TestHandlePredictOutcome(t *testing.T) {
	ctx := context.Background()

	svc := &MockRiskService{}
	svc.On("PredictOutcome", ctx, mock.Anything).Return(&domain.OutcomeResult{
		PatientID: "p-1",
		OutcomeForecast: domain.OutcomeForecast{
			RecommendedInterventions: []string{"Low-dose aspirin"},
			Confidence:               0.7,
		},
	}, nil)

	result, _, err := newTestServer(svc).handlePredictOutcome(ctx, &mcp.CallToolRequest{}, PatientParams{PatientID: "p-1"})
	require.NoError(t, err)
	assert.Contains(t, textOf(t, result, 0), "Low-dose aspirin")
}
