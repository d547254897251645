package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sanspareilsmyn/sweeplens/internal/config"
	"github.com/sanspareilsmyn/sweeplens/internal/ingest"
	"github.com/sanspareilsmyn/sweeplens/internal/logging"
	"github.com/sanspareilsmyn/sweeplens/internal/pipeline"
	"github.com/sanspareilsmyn/sweeplens/internal/render"
	"github.com/sanspareilsmyn/sweeplens/internal/server"
	"github.com/sanspareilsmyn/sweeplens/internal/store"
)

var (
	configFile = flag.String("config", "configs/config.dev.yaml", "Path to the configuration file")
	logger     *zap.Logger
)

func main() {
	// Initialize Configuration
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration from %s: %v\n", *configFile, err)
		os.Exit(1)
	}

	// Initialize Logger
	var logErr error
	logger, logErr = logging.NewLogger(cfg.Log)
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to initialize logger: %v\n", logErr)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	sugar := logger.Sugar()
	sugar.Infow("Configuration loaded successfully", "path", *configFile, "storage_root", cfg.Storage.Root)

	// Storage
	fs := afero.NewOsFs()
	layout := ingest.NewLayout(fs, cfg.Storage.Root, logger.Named("ingest"))
	if err := layout.Setup(); err != nil {
		sugar.Fatalw("Failed to prepare storage", "root", cfg.Storage.Root, "error", err)
	}
	gw := store.NewFS(fs, cfg.Storage.Root, logger.Named("store"))
	if err := gw.Init(); err != nil {
		sugar.Fatalw("Failed to prepare snapshot store", "root", cfg.Storage.Root, "error", err)
	}

	// Pipeline
	publisher, err := pipeline.NewPublisher(cfg.Publisher, logger.Named("publisher"))
	if err != nil {
		sugar.Fatalw("Failed to create snapshot publisher", "error", err)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			sugar.Errorw("Failed to close snapshot publisher", "error", err)
		}
	}()
	renderer := render.New(fs, layout.GraphDir, logger.Named("render"))
	proc := pipeline.New(cfg, layout, gw, renderer, publisher, logger)

	srv := server.New(cfg.Server, server.NewHandler(proc, layout, gw, logger.Named("handler")), logger.Named("server"))

	// Handle Graceful Shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := srv.Run(ctx)

	finalLogLevel := zapcore.InfoLevel
	shutdownReason := "gracefully"
	var finalErrorField = zap.Skip()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		shutdownReason = "due to error"
		finalLogLevel = zapcore.ErrorLevel
		finalErrorField = zap.Error(runErr)
	}
	logger.Log(finalLogLevel, fmt.Sprintf("Server shutdown %s.", shutdownReason),
		zap.String("reason", shutdownReason),
		finalErrorField,
	)
	sugar.Info("SweepLens finished.")
}
