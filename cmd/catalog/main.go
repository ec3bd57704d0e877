package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"droneaid/internal/config"
	"droneaid/internal/dataset"
	"droneaid/internal/repository/sqlite"
)

func main() {
	cfg := config.Load()
	defaultDB := cfg.CatalogPath
	if defaultDB == "" {
		defaultDB = filepath.Join("data", "catalog.db")
	}

	datasetDir := flag.String("dataset", cfg.DatasetDir, "Dataset directory containing images/ and labels/")
	dbPath := flag.String("db", defaultDB, "Catalog database path")
	reset := flag.Bool("reset", false, "Delete existing sample records first")
	flag.Parse()

	fmt.Printf("Cataloguing dataset %s into %s\n", *datasetDir, *dbPath)

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	repo := sqlite.NewSampleRepository(db)
	if *reset {
		if err := repo.DeleteAll(); err != nil {
			log.Fatalf("Failed to reset catalog: %v", err)
		}
	}

	classes := dataset.Classes
	if m, err := dataset.LoadManifest(filepath.Join(*datasetDir, dataset.ManifestName)); err == nil {
		classes = m.Names
	}

	result, err := dataset.Scan(*datasetDir, classes)
	if err != nil {
		log.Fatalf("Failed to scan dataset: %v", err)
	}
	for _, s := range result.Skipped {
		log.Printf("Skipping %s", s)
	}

	if len(result.Samples) == 0 {
		fmt.Println("No samples found to catalog")
		return
	}

	fmt.Printf("Inserting %d samples into catalog...\n", len(result.Samples))
	if err := repo.InsertBatch(result.Samples); err != nil {
		log.Fatalf("Failed to insert samples: %v", err)
	}

	fmt.Printf("Catalogued %d samples\n", len(result.Samples))
	if len(result.Skipped) > 0 {
		fmt.Printf("Skipped %d files (invalid format or errors)\n", len(result.Skipped))
	}

	counts, err := repo.CountBySplit()
	if err == nil {
		fmt.Printf("\nCatalog statistics:\n")
		for _, c := range counts {
			fmt.Printf("   %-10s %-5s %d\n", c.Class, c.Split, c.Count)
		}
	}
}
