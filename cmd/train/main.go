package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"droneaid/internal/command"
	"droneaid/internal/config"
	"droneaid/internal/dataset"
	"droneaid/internal/logger"
	"droneaid/internal/training"
)

func main() {
	cfg := config.Load()

	var device string
	flag.StringVar(&cfg.IconsDirectory, "icons", cfg.IconsDirectory, "Directory with icon-<class>.png files")
	flag.StringVar(&cfg.DatasetDir, "data", cfg.DatasetDir, "Dataset directory to (re)generate")
	flag.IntVar(&cfg.SamplesPerClass, "samples", cfg.SamplesPerClass, "Samples per class")
	flag.StringVar(&cfg.BaseModel, "model", cfg.BaseModel, "Base model weights")
	flag.IntVar(&cfg.Epochs, "epochs", cfg.Epochs, "Training epochs")
	flag.IntVar(&cfg.ImageSize, "imgsz", cfg.ImageSize, "Training image size")
	flag.IntVar(&cfg.BatchSize, "batch", cfg.BatchSize, "Batch size")
	flag.StringVar(&cfg.ProjectDir, "project", cfg.ProjectDir, "Directory for training runs")
	flag.StringVar(&cfg.RunName, "name", cfg.RunName, "Run name")
	flag.StringVar(&device, "device", "", "Training device (empty = auto)")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed for dataset generation (0 = time based)")
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

	builder := dataset.NewWriter(dataset.Options{
		IconsDir:        cfg.IconsDirectory,
		OutputDir:       cfg.DatasetDir,
		Classes:         dataset.Classes,
		SamplesPerClass: cfg.SamplesPerClass,
		Mode:            cfg.EffectsMode,
	}, rand.New(rand.NewSource(seed)), logr)

	opts := training.OptionsFromConfig(cfg)
	opts.Device = device

	runner := &command.ExecRunner{Output: os.Stdout}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logr.Info("DroneAid Symbol Detection Training")
	report, err := training.NewDriver(opts, runner, builder, logr).Run(ctx)
	if err != nil {
		logr.Error("%v", err)
		os.Exit(1)
	}

	logr.Info("Training complete!")
	if report.ONNXPath != "" {
		logr.Info("Model saved to: %s", report.ONNXPath)
		logr.Info("Start the server with: MODEL_PATH=%s server", report.ONNXPath)
	}
}
