package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"droneaid/internal/app"
	"droneaid/internal/config"
	"droneaid/internal/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()

	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP port")
	flag.StringVar(&cfg.ModelPath, "model", cfg.ModelPath, "Path to the ONNX model (empty = search standard locations)")
	flag.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "SQLite sample catalog (optional)")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logr, err := logger.NewLogger(cfg.LogDirectory)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)

	application, err := app.NewApp(cfg, logr)
	if err != nil {
		logr.Error("Failed to initialise server: %v", err)
		os.Exit(1)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		logr.Error("Failed to start server: %v", err)
		os.Exit(1)
	}
}
