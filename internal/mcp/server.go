// Package mcp exposes the assessment operations as Model Context Protocol tools.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/pregnancycare-risk-service/internal/domain"
)

// RiskService is the subset of the assessment service offered as tools.
type RiskService interface {
	Assess(ctx context.Context, input *domain.PatientInput) (*domain.AssessmentRecord, error)
	ScanEarlyDetection(ctx context.Context, input *domain.PatientInput) (*domain.EarlyDetectionResult, error)
	PredictOutcome(ctx context.Context, input *domain.PatientInput) (*domain.OutcomeResult, error)
}

// Server represents the pregnancy risk MCP server
type Server struct {
	service   RiskService
	mcpServer *mcp.Server
	logger    *logrus.Logger
}

// NewServer creates a new MCP server instance with every tool registered.
func NewServer(service RiskService, version string, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}

	serverInfo := &mcp.Implementation{
		Name:    "pregnancy-risk-mcp-server",
		Version: version,
	}

	s := &Server{
		service:   service,
		mcpServer: mcp.NewServer(serverInfo, nil),
		logger:    logger,
	}
	s.registerTools()
	return s
}

// Start serves tools over stdio until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting pregnancy risk MCP server on stdio")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolAssessRisk,
		Description: "Score preeclampsia, gestational diabetes and preterm birth risk for one pregnancy and return the combined assessment with recommendations and the next assessment date.",
	}, s.handleAssess)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolEarlyDetection,
		Description: "Forecast per-condition risk probabilities for each of the next 14 days.",
	}, s.handleEarlyDetection)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolPredictOutcome,
		Description: "Predict delivery, maternal and fetal outcomes with recommended interventions.",
	}, s.handlePredictOutcome)

	s.logger.WithField("tool_count", 3).Info("Registered MCP tools")
}
