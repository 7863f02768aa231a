// Package main serves the assessment tools over MCP stdio. Logs go to stderr.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pregnancycare-risk-service/internal/app"
	"github.com/pregnancycare-risk-service/internal/config"
	"github.com/pregnancycare-risk-service/internal/mcp"
)

var version = "dev"

func main() {
	cfg := config.LoadLiteConfig()
	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat)

	logger.WithField("data_dir", cfg.DataDir).Info("Starting pregnancy risk MCP server")

	lite, err := app.NewLite(cfg, nil, logger)
	if err != nil {
		log.Fatalf("Failed to create assessment service: %v", err)
	}
	defer lite.Close()

	mcpServer := mcp.NewServer(lite.Service, version, logger)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down MCP server...")
		cancel()
	}()

	if err := mcpServer.Start(ctx); err != nil {
		logger.WithError(err).Error("MCP server failed")
		return
	}

	logger.Info("Pregnancy risk MCP server stopped")
}
