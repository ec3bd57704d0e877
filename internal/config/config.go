package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Inference service
	Port              int
	ModelPath         string // empty = search the standard locations
	DefaultConfidence float64
	MaxRequestBytes   int64
	LogDirectory      string

	// Live stream
	StreamEveryNth       int
	CaptureDirectory     string
	CaptureBufferLimit   int
	CaptureFlushInterval time.Duration

	// Dataset generation
	IconsDirectory  string
	DatasetDir      string
	SamplesPerClass int
	EffectsMode     string // "enhanced" or "basic"
	Seed            int64  // 0 = seed from the clock

	// Training
	BaseModel   string
	Epochs      int
	ImageSize   int
	BatchSize   int
	Patience    int
	ProjectDir  string
	RunName     string
	YoloCommand string

	// Sample harvester
	TileDirectory string
	TileCount     int
	TileWidth     int
	TileHeight    int
	TileSizeM     float64
	WMSBaseURL    string
	WMSLayer      string
	ExiftoolPath  string

	// Catalog
	CatalogPath string // empty disables the SQLite catalog
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	return &Config{
		Port:              getEnvAsInt("PORT", 8000),
		ModelPath:         getEnv("MODEL_PATH", ""),
		DefaultConfidence: getEnvAsFloat("CONF_THRESHOLD", 0.5),
		MaxRequestBytes:   getEnvAsInt64("MAX_REQUEST_BYTES", 50*1024*1024),
		LogDirectory:      getEnv("LOG_DIR", filepath.Join(".", "logs")),

		StreamEveryNth:       getEnvAsInt("STREAM_EVERY_NTH", 1),
		CaptureDirectory:     getEnv("CAPTURE_DIR", filepath.Join(".", "captures")),
		CaptureBufferLimit:   getEnvAsInt("CAPTURE_BUFFER_LIMIT", 50),
		CaptureFlushInterval: time.Duration(getEnvAsInt("CAPTURE_FLUSH_SECONDS", 10)) * time.Second,

		IconsDirectory:  getEnv("ICONS_DIR", filepath.Join(".", "assets", "icons")),
		DatasetDir:      getEnv("DATASET_DIR", filepath.Join(".", "data", "droneaid_dataset")),
		SamplesPerClass: getEnvAsInt("SAMPLES_PER_CLASS", 150),
		EffectsMode:     strings.ToLower(getEnv("EFFECTS_MODE", "enhanced")),
		Seed:            getEnvAsInt64("SEED", 0),

		BaseModel:   getEnv("BASE_MODEL", "yolov8n.pt"),
		Epochs:      getEnvAsInt("EPOCHS", 100),
		ImageSize:   getEnvAsInt("IMAGE_SIZE", 640),
		BatchSize:   getEnvAsInt("BATCH_SIZE", 16),
		Patience:    getEnvAsInt("PATIENCE", 20),
		ProjectDir:  getEnv("PROJECT_DIR", filepath.Join(".", "models")),
		RunName:     getEnv("RUN_NAME", "droneaid"),
		YoloCommand: getEnv("YOLO_CMD", "yolo"),

		TileDirectory: getEnv("TILE_DIR", "pr_s2_tiles"),
		TileCount:     getEnvAsInt("TILE_COUNT", 5),
		TileWidth:     getEnvAsInt("TILE_WIDTH", 1000),
		TileHeight:    getEnvAsInt("TILE_HEIGHT", 1000),
		TileSizeM:     getEnvAsFloat("TILE_SIZE_M", 500),
		WMSBaseURL:    getEnv("WMS_BASE_URL", "https://tiles.maps.eox.at/"),
		WMSLayer:      getEnv("WMS_LAYER", "s2cloudless-2024"),
		ExiftoolPath:  getEnv("EXIFTOOL", "exiftool"),

		CatalogPath: getEnv("CATALOG_PATH", ""),
	}
}

// Validate checks the values every binary relies on.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.DefaultConfidence < 0 || c.DefaultConfidence > 1 {
		return fmt.Errorf("conf threshold must be between 0 and 1, got %v", c.DefaultConfidence)
	}
	if c.MaxRequestBytes <= 0 {
		return fmt.Errorf("max request bytes must be positive")
	}
	if c.StreamEveryNth < 1 || c.CaptureBufferLimit < 1 || c.CaptureFlushInterval <= 0 {
		return fmt.Errorf("invalid stream configuration")
	}
	if c.SamplesPerClass < 1 {
		return fmt.Errorf("samples per class must be positive, got %d", c.SamplesPerClass)
	}
	if c.EffectsMode != "enhanced" && c.EffectsMode != "basic" {
		return fmt.Errorf("effects mode must be enhanced or basic, got %q", c.EffectsMode)
	}
	if c.Epochs < 1 || c.ImageSize < 32 || c.BatchSize < 1 {
		return fmt.Errorf("invalid training configuration: epochs=%d imgsz=%d batch=%d", c.Epochs, c.ImageSize, c.BatchSize)
	}
	if c.TileCount < 0 || c.TileWidth < 1 || c.TileHeight < 1 || c.TileSizeM <= 0 {
		return fmt.Errorf("invalid harvester configuration")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
