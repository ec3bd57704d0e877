package dataset

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	TrainImagesDir = "images/train"
	ValImagesDir   = "images/val"
	ManifestName   = "dataset.yaml"
)

// Manifest is the dataset description consumed by the YOLO trainer.
type Manifest struct {
	Path  string   `yaml:"path"`
	Train string   `yaml:"train"`
	Val   string   `yaml:"val"`
	NC    int      `yaml:"nc"`
	Names []string `yaml:"names"`
}

// NewManifest builds a manifest rooted at the absolute form of root.
func NewManifest(root string, classes []string) (*Manifest, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve dataset root: %w", err)
	}
	names := make([]string, len(classes))
	copy(names, classes)

	return &Manifest{
		Path:  abs,
		Train: TrainImagesDir,
		Val:   ValImagesDir,
		NC:    len(names),
		Names: names,
	}, nil
}

// Save writes the manifest as YAML.
func (m *Manifest) Save(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// LoadManifest reads a manifest written by Save (or by hand).
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.NC != len(m.Names) {
		return nil, fmt.Errorf("manifest nc=%d does not match %d names", m.NC, len(m.Names))
	}
	return &m, nil
}
