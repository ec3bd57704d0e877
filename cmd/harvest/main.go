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
	"droneaid/internal/harvest"
	"droneaid/internal/logger"
	"droneaid/internal/repository/sqlite"
)

func main() {
	cfg := config.Load()

	flag.StringVar(&cfg.TileDirectory, "out", cfg.TileDirectory, "Output directory for tiles")
	flag.IntVar(&cfg.TileCount, "count", cfg.TileCount, "Number of tiles to fetch")
	flag.Float64Var(&cfg.TileSizeM, "size", cfg.TileSizeM, "Tile edge length in meters")
	flag.StringVar(&cfg.WMSBaseURL, "wms", cfg.WMSBaseURL, "WMS endpoint")
	flag.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "SQLite catalog to record tiles in (optional)")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed (0 = time based)")
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

	h := harvest.NewHarvester(harvest.Options{
		OutputDir: cfg.TileDirectory,
		Count:     cfg.TileCount,
		Width:     cfg.TileWidth,
		Height:    cfg.TileHeight,
		SizeM:     cfg.TileSizeM,
		BaseURL:   cfg.WMSBaseURL,
		Layer:     cfg.WMSLayer,
		Exiftool:  cfg.ExiftoolPath,
	}, command.NewExecRunner(), rand.New(rand.NewSource(seed)), logr)

	var db *sqlite.DB
	if cfg.CatalogPath != "" {
		db, err = sqlite.New(cfg.CatalogPath)
		if err != nil {
			logr.Error("Failed to open catalog: %v", err)
			os.Exit(1)
		}
		h.WithCatalog(sqlite.NewTileRepository(db))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	tiles, err := h.Run(ctx)
	stop()
	if db != nil {
		db.Close()
	}
	if err != nil {
		logr.Error("Harvest failed after %d tiles: %v", len(tiles), err)
		os.Exit(1)
	}
	logr.Info("Done. %d tiles in %s", len(tiles), cfg.TileDirectory)
}
