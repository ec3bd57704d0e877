package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"droneaid/internal/config"
	"droneaid/internal/dataset"
	"droneaid/internal/logger"
	"droneaid/internal/repository/sqlite"
)

func main() {
	cfg := config.Load()

	flag.StringVar(&cfg.IconsDirectory, "icons", cfg.IconsDirectory, "Directory with icon-<class>.png files")
	flag.StringVar(&cfg.DatasetDir, "out", cfg.DatasetDir, "Output dataset directory")
	flag.IntVar(&cfg.SamplesPerClass, "samples", cfg.SamplesPerClass, "Samples per class")
	flag.StringVar(&cfg.EffectsMode, "effects", cfg.EffectsMode, "Effects mode: enhanced or basic")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed (0 = time based)")
	flag.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "SQLite catalog to record samples in (optional)")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logr, err := logger.NewLogger(cfg.LogDirectory)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	logr.Info("Random seed: %d", seed)

	writer := dataset.NewWriter(dataset.Options{
		IconsDir:        cfg.IconsDirectory,
		OutputDir:       cfg.DatasetDir,
		Classes:         dataset.Classes,
		SamplesPerClass: cfg.SamplesPerClass,
		Mode:            cfg.EffectsMode,
	}, rand.New(rand.NewSource(seed)), logr)

	if cfg.CatalogPath != "" {
		db, err := sqlite.New(cfg.CatalogPath)
		if err != nil {
			logr.Error("Failed to open catalog: %v", err)
			os.Exit(1)
		}
		defer db.Close()
		writer.WithCatalog(sqlite.NewSampleRepository(db))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	summary, err := writer.Generate(ctx)
	if err != nil {
		logr.Error("Dataset generation failed: %v", err)
		os.Exit(1)
	}
	if len(summary.Skipped) > 0 {
		logr.Warning("Classes without icons: %v", summary.Skipped)
	}
	logr.Info("Manifest written to %s", summary.ManifestPath)
}
