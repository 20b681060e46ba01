// Command analytics-mcp exposes dataset reports, chart analytics and model
// training as MCP tools over stdio.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"dailyanalytics/internal/config"
	"dailyanalytics/internal/infrastructure"
	"dailyanalytics/internal/ml"
	"dailyanalytics/internal/services"
	"dailyanalytics/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the MCP protocol, so logs go to stderr or the log file
	var logger *slog.Logger
	if cfg.Logging.Output == "file" {
		if logger, err = infrastructure.InitializeLogger(cfg.Logging); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
			os.Exit(1)
		}
		defer infrastructure.CloseLogFile()
	} else {
		logger = infrastructure.NewLoggerWithWriter(os.Stderr, &slog.HandlerOptions{
			Level: infrastructure.ParseLogLevel(cfg.Logging.Level),
		})
		slog.SetDefault(logger)
	}

	paths, err := cfg.Paths.Resolve()
	if err != nil {
		logger.Error("Failed to resolve paths", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := paths.EnsureDirectories(); err != nil {
		logger.Error("Failed to create directories", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx := context.Background()
	repo, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to open storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer repo.Close()

	pipelineCfg := ml.DefaultPipelineConfig()
	pipelineCfg.NEstimators = cfg.Pipeline.NEstimators
	pipelineCfg.RandomState = cfg.Pipeline.RandomState
	pipelineCfg.TestSize = cfg.Pipeline.TestSize
	pipelineCfg.TargetColumn = cfg.Pipeline.TargetColumn
	pipelineCfg.Workers = cfg.Pipeline.Workers

	tools := &toolset{
		paths:     paths,
		analytics: services.NewAnalyticsService(repo, nil, logger),
		pipeline:  services.NewPipelineService(pipelineCfg, paths, 1, nil, nil, logger),
		logger:    logger,
	}

	logger.Info("Starting analytics MCP server via stdio")
	if err := server.ServeStdio(newMCPServer(tools)); err != nil {
		logger.Error("Server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
