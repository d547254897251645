// Command sweepctl ingests a directory of logger files without the HTTP
// server and prints the resulting snapshots as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/sweeplens/internal/config"
	"github.com/sanspareilsmyn/sweeplens/internal/ingest"
	"github.com/sanspareilsmyn/sweeplens/internal/logging"
	"github.com/sanspareilsmyn/sweeplens/internal/pipeline"
	"github.com/sanspareilsmyn/sweeplens/internal/render"
	"github.com/sanspareilsmyn/sweeplens/internal/store"
	"github.com/sanspareilsmyn/sweeplens/internal/telemetry"
)

var (
	configFile = flag.String("config", "configs/config.dev.yaml", "Path to the configuration file")
	inputDir   = flag.String("dir", "", "Directory of .log or .zip files to ingest")
)

func main() {
	flag.Parse()
	if *inputDir == "" {
		fmt.Fprintln(os.Stderr, "usage: sweepctl -config path -dir logs/")
		os.Exit(2)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration from %s: %v\n", *configFile, err)
		os.Exit(1)
	}
	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fs := afero.NewOsFs()
	layout := ingest.NewLayout(fs, cfg.Storage.Root, logger.Named("ingest"))
	if err := layout.Setup(); err != nil {
		sugar.Fatalw("Failed to prepare storage", "root", cfg.Storage.Root, "error", err)
	}
	gw := store.NewFS(fs, cfg.Storage.Root, logger.Named("store"))
	if err := gw.Init(); err != nil {
		sugar.Fatalw("Failed to prepare snapshot store", "root", cfg.Storage.Root, "error", err)
	}
	publisher, err := pipeline.NewPublisher(cfg.Publisher, logger.Named("publisher"))
	if err != nil {
		sugar.Fatalw("Failed to create snapshot publisher", "error", err)
	}
	defer publisher.Close()
	proc := pipeline.New(cfg, layout, gw, render.New(fs, layout.GraphDir, logger.Named("render")), publisher, logger)

	pending, err := storeDir(fs, layout, *inputDir, logger)
	if err != nil {
		sugar.Fatalw("Failed to read input directory", "dir", *inputDir, "error", err)
	}
	if len(pending) == 0 {
		sugar.Info("Nothing new to ingest.")
		return
	}

	sns := make([]string, 0, len(pending))
	for sn := range pending {
		sns = append(sns, sn)
	}
	slices.Sort(sns)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	failed := false
	for _, sn := range sns {
		run, err := proc.Ingest(ctx, sn, pending[sn])
		if err != nil {
			sugar.Errorw("Ingest failed", "sn", sn, "error", err)
			failed = true
			continue
		}
		if err := enc.Encode(run.Snapshot); err != nil {
			sugar.Errorw("Failed to print snapshot", "sn", sn, "error", err)
		}
	}
	if failed {
		os.Exit(1)
	}
}

// storeDir stores every log and zip under dir and returns the new log paths
// per SN. Files already stored earlier are skipped.
func storeDir(fs afero.Fs, layout *ingest.Layout, dir string, logger *zap.Logger) (map[string][]string, error) {
	pending := map[string][]string{}
	err := afero.Walk(fs, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		ext := strings.ToLower(filepath.Ext(p))
		if info.IsDir() || (ext != telemetry.LogExt && ext != telemetry.ZipExt) {
			return nil
		}
		data, err := afero.ReadFile(fs, p)
		if err != nil {
			return err
		}
		stored, rejected := layout.StoreUpload(info.Name(), data)
		for _, r := range rejected {
			logger.Warn("File rejected", zap.String("file", r.Name), zap.Error(r.Err))
		}
		for _, s := range stored {
			if !s.Duplicate {
				pending[s.SN] = append(pending[s.SN], s.Path)
			}
		}
		return nil
	})
	return pending, err
}
