// Package harvest downloads geotagged Sentinel-2 tiles for manual review.
package harvest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"droneaid/internal/command"
	"droneaid/internal/geometry"
	"droneaid/internal/logger"
	"droneaid/internal/model"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseURL = "https://tiles.maps.eox.at/"
	DefaultLayer   = "s2cloudless-2024"
	requestTimeout = 30 * time.Second
)

// TileCatalog records fetched tiles. *sqlite.TileRepository satisfies it.
type TileCatalog interface {
	Insert(t *model.Tile) (int64, error)
}

type Options struct {
	OutputDir string
	Count     int
	Width     int
	Height    int
	SizeM     float64
	BaseURL   string
	Layer     string
	Exiftool  string
	Region    Region
}

type Harvester struct {
	opts    Options
	client  *resty.Client
	runner  command.Runner
	rng     geometry.Rand
	logger  *logger.Logger
	catalog TileCatalog
}

func NewHarvester(opts Options, runner command.Runner, rng geometry.Rand, log *logger.Logger) *Harvester {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Layer == "" {
		opts.Layer = DefaultLayer
	}
	if opts.Exiftool == "" {
		opts.Exiftool = "exiftool"
	}
	if opts.Region == (Region{}) {
		opts.Region = PuertoRico
	}
	if log == nil {
		log = logger.NewNop()
	}

	client := resty.New().
		SetTimeout(requestTimeout).
		SetRetryCount(0)

	return &Harvester{opts: opts, client: client, runner: runner, rng: rng, logger: log}
}

// WithCatalog records each saved tile in c.
func (h *Harvester) WithCatalog(c TileCatalog) *Harvester {
	h.catalog = c
	return h
}

// Run fetches and tags Count tiles. The first failure aborts the run; tiles
// already written stay on disk.
func (h *Harvester) Run(ctx context.Context) ([]model.Tile, error) {
	if err := os.MkdirAll(h.opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	tiles := make([]model.Tile, 0, h.opts.Count)
	for i := 0; i < h.opts.Count; i++ {
		if err := ctx.Err(); err != nil {
			return tiles, err
		}

		lat, lon := h.opts.Region.RandomCenter(h.rng)
		bbox := BBoxAround(lat, lon, h.opts.SizeM)
		path := filepath.Join(h.opts.OutputDir, TileName(i+1, lat, lon))

		h.logger.Info("Fetching tile %d/%d at %.5f, %.5f", i+1, h.opts.Count, lat, lon)
		if err := h.fetch(ctx, bbox, path); err != nil {
			return tiles, err
		}
		if _, err := h.runner.Run(ctx, h.opts.Exiftool, ExiftoolArgs(path, lat, lon)...); err != nil {
			return tiles, fmt.Errorf("failed to geotag %s: %w", path, err)
		}

		tile := model.Tile{
			Filename:  filepath.Base(path),
			CenterLat: lat,
			CenterLon: lon,
			MinLon:    bbox.MinLon,
			MinLat:    bbox.MinLat,
			MaxLon:    bbox.MaxLon,
			MaxLat:    bbox.MaxLat,
			Width:     h.opts.Width,
			Height:    h.opts.Height,
			FetchedAt: time.Now(),
		}
		if h.catalog != nil {
			id, err := h.catalog.Insert(&tile)
			if err != nil {
				return tiles, fmt.Errorf("failed to catalog %s: %w", tile.Filename, err)
			}
			tile.ID = id
		}
		tiles = append(tiles, tile)
		h.logger.Info("Saved %s", path)
	}

	return tiles, nil
}

func (h *Harvester) fetch(ctx context.Context, bbox BBox, path string) error {
	resp, err := h.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"SERVICE": "WMS",
			"VERSION": "1.1.1",
			"REQUEST": "GetMap",
			"LAYERS":  h.opts.Layer,
			"SRS":     "EPSG:4326",
			"BBOX":    bbox.String(),
			"WIDTH":   strconv.Itoa(h.opts.Width),
			"HEIGHT":  strconv.Itoa(h.opts.Height),
			"FORMAT":  "image/jpeg",
		}).
		Get(h.opts.BaseURL)
	if err != nil {
		return fmt.Errorf("tile request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("tile request failed: %s", resp.Status())
	}
	// WMS servers report errors as XML with a 200 status.
	if ct := resp.Header().Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return fmt.Errorf("tile service returned %s: %s", ct, truncate(resp.String(), 200))
	}

	if err := os.WriteFile(path, resp.Body(), 0644); err != nil {
		return fmt.Errorf("failed to write tile: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
