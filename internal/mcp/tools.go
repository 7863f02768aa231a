package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pregnancycare-risk-service/internal/domain"
)

// Tool names
const (
	ToolAssessRisk     = "assess_pregnancy_risk"
	ToolEarlyDetection = "scan_early_detection"
	ToolPredictOutcome = "predict_outcome"
)

// PatientParams is the tool input. It mirrors domain.PatientInput; the
// observation time is always the server clock.
type PatientParams struct {
	PatientID   string              `json:"patient_id" jsonschema:"patient identifier"`
	PregnancyID string              `json:"pregnancy_id" jsonschema:"pregnancy identifier"`
	PatientData *domain.PatientData `json:"patient_data" jsonschema:"demographics and medical history"`
	VitalSigns  *domain.VitalSigns  `json:"vital_signs" jsonschema:"most recent vital sign readings"`
	LabResults  map[string]float64  `json:"lab_results,omitempty" jsonschema:"lab values keyed by test name"`
	Symptoms    []string            `json:"symptoms,omitempty" jsonschema:"reported symptoms"`
}

func (p PatientParams) input() *domain.PatientInput {
	return &domain.PatientInput{
		PatientID:   p.PatientID,
		PregnancyID: p.PregnancyID,
		PatientData: p.PatientData,
		VitalSigns:  p.VitalSigns,
		LabResults:  p.LabResults,
		Symptoms:    p.Symptoms,
	}
}

// handleAssess handles the assess_pregnancy_risk tool invocation
func (s *Server) handleAssess(ctx context.Context, req *mcp.CallToolRequest, params PatientParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", ToolAssessRisk).Info("Tool invoked")

	record, err := s.service.Assess(ctx, params.input())
	if err != nil {
		return s.createErrorResult("Risk assessment failed", err), nil, nil
	}

	summary := fmt.Sprintf("Assessment %s for patient %s: %s risk (score %.1f, confidence %.2f). Next assessment due %s.",
		record.AssessmentID, record.PatientID, record.RiskLevel, record.OverallScore, record.Confidence,
		record.NextAssessmentDue.Format("2006-01-02 15:04 MST"))
	if len(record.Recommendations) > 0 {
		titles := make([]string, 0, len(record.Recommendations))
		for _, r := range record.Recommendations {
			titles = append(titles, r.Title)
		}
		summary += " Recommendations: " + strings.Join(titles, "; ") + "."
	}

	return s.createResult(summary, record), record, nil
}

// handleEarlyDetection handles the scan_early_detection tool invocation
func (s *Server) handleEarlyDetection(ctx context.Context, req *mcp.CallToolRequest, params PatientParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", ToolEarlyDetection).Info("Tool invoked")

	result, err := s.service.ScanEarlyDetection(ctx, params.input())
	if err != nil {
		return s.createErrorResult("Early detection scan failed", err), nil, nil
	}

	peak := 0
	for i, p := range result.Predictions {
		if p.OverallProbability > result.Predictions[peak].OverallProbability {
			peak = i
		}
	}
	summary := fmt.Sprintf("Early detection for patient %s over %s.", result.PatientID, result.DetectionWindow)
	if len(result.Predictions) > 0 {
		p := result.Predictions[peak]
		summary += fmt.Sprintf(" Highest overall probability %.2f on day %d (%s).", p.OverallProbability, p.DaysAhead, p.Date.Format("2006-01-02"))
	}

	return s.createResult(summary, result), result, nil
}

// handlePredictOutcome handles the predict_outcome tool invocation
func (s *Server) handlePredictOutcome(ctx context.Context, req *mcp.CallToolRequest, params PatientParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", ToolPredictOutcome).Info("Tool invoked")

	result, err := s.service.PredictOutcome(ctx, params.input())
	if err != nil {
		return s.createErrorResult("Outcome prediction failed", err), nil, nil
	}

	summary := fmt.Sprintf("Outcome prediction for patient %s (confidence %.2f).", result.PatientID, result.Confidence)
	if len(result.RecommendedInterventions) > 0 {
		summary += " Recommended interventions: " + strings.Join(result.RecommendedInterventions, "; ") + "."
	}

	return s.createResult(summary, result), result, nil
}

// createResult returns a summary line followed by the full JSON payload.
func (s *Server) createResult(summary string, payload any) *mcp.CallToolResult {
	content := []mcp.Content{&mcp.TextContent{Text: summary}}
	if raw, err := json.MarshalIndent(payload, "", "  "); err == nil {
		content = append(content, &mcp.TextContent{Text: string(raw)})
	} else {
		s.logger.WithError(err).Warn("Failed to encode tool result")
	}
	return &mcp.CallToolResult{Content: content}
}

// createErrorResult creates a standardized error result for tool calls
func (s *Server) createErrorResult(message string, err error) *mcp.CallToolResult {
	errorText := fmt.Sprintf("Error: %s", message)
	if err != nil {
		errorText += fmt.Sprintf(" - %v", err)
	}
	s.logger.WithError(err).Warn(message)

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: errorText},
		},
		IsError: true,
	}
}
