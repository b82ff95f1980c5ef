package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/contract-risk-assistant/internal/adapters/mcp"
	"github.com/kirillkom/contract-risk-assistant/internal/bootstrap"
	"github.com/kirillkom/contract-risk-assistant/internal/config"
	"github.com/kirillkom/contract-risk-assistant/internal/observability/logging"
)

const (
	serviceName = "contract-risk-mcp"
	version     = "0.1.0"
)

func main() {
	cfg := config.Load()
	// stdout carries MCP frames.
	logger := logging.NewStderrLogger(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, serviceName, logger)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	app.Start(ctx)

	tools := mcpadapter.NewTools(app.IngestUC, app.Store, app.RisksUC, app.ChatUC, logger, cfg.AnalysisTimeout)
	logger.Info("mcp server ready on stdio")
	serveErr := server.ServeStdio(tools.NewServer(version))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), bootstrap.ShutdownTimeout)
	defer cancel()
	app.Close(shutdownCtx)
	if serveErr != nil {
		logger.Error("mcp server stopped", "error", serveErr)
		os.Exit(1)
	}
}
