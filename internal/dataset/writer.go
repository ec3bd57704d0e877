package dataset

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"droneaid/internal/logger"
	"droneaid/internal/model"

	"github.com/disintegration/imaging"
)

// ErrIconNotFound is returned when a class has no icon asset.
var ErrIconNotFound = errors.New("icon not found")

const (
	SplitTrain = "train"
	SplitVal   = "val"

	DefaultJPEGQuality = 85
	progressEvery      = 100
)

// TrainCount is the number of indices of an n-sample class that go to train.
func TrainCount(n int) int {
	return n * 8 / 10
}

// SplitFor returns the split an index belongs to.
func SplitFor(index, n int) string {
	if index < TrainCount(n) {
		return SplitTrain
	}
	return SplitVal
}

// SampleCatalog records written samples. *sqlite.SampleRepository
// satisfies it.
type SampleCatalog interface {
	Insert(s *model.Sample) (int64, error)
}

type Options struct {
	IconsDir        string
	OutputDir       string
	Classes         []string
	SamplesPerClass int
	Mode            string
	JPEGQuality     int
}

// Summary describes a finished Generate run.
type Summary struct {
	Written      int
	Train        int
	Val          int
	Skipped      []string
	ManifestPath string
	Manifest     *Manifest
}

// Writer renders the whole dataset tree: images, labels and manifest.
type Writer struct {
	opts      Options
	generator *Generator
	rng       Rand
	log       *logger.Logger
	catalog   SampleCatalog
}

func NewWriter(opts Options, rng Rand, log *logger.Logger) *Writer {
	if len(opts.Classes) == 0 {
		opts.Classes = Classes
	}
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = DefaultJPEGQuality
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Writer{
		opts:      opts,
		generator: NewGenerator(opts.Mode),
		rng:       rng,
		log:       log,
	}
}

// WithCatalog records every written sample in c.
func (w *Writer) WithCatalog(c SampleCatalog) *Writer {
	w.catalog = c
	return w
}

// Generate writes SamplesPerClass samples for every class with an icon, then
// the manifest. Classes without an icon are skipped with a warning. The
// manifest always lists the full class set so indices stay stable.
func (w *Writer) Generate(ctx context.Context) (*Summary, error) {
	if w.opts.SamplesPerClass < 1 {
		return nil, fmt.Errorf("samples per class must be positive, got %d", w.opts.SamplesPerClass)
	}
	if err := w.prepareDirs(); err != nil {
		return nil, err
	}

	w.log.Info("Generating %d samples per class for %d classes (%s effects) into %s",
		w.opts.SamplesPerClass, len(w.opts.Classes), w.generator.Mode, w.opts.OutputDir)

	summary := &Summary{}
	for classIndex, class := range w.opts.Classes {
		icon, err := loadIcon(IconPath(w.opts.IconsDir, class))
		if errors.Is(err, ErrIconNotFound) {
			w.log.Warning("Icon for class %s not found, skipping", class)
			summary.Skipped = append(summary.Skipped, class)
			continue
		}
		if err != nil {
			return nil, err
		}

		for i := 0; i < w.opts.SamplesPerClass; i++ {
			if err := ctx.Err(); err != nil {
				return summary, err
			}

			sample := w.generator.Synthesize(w.rng, icon, classIndex)
			sample.Class = class
			sample.Index = i
			sample.Split = SplitFor(i, w.opts.SamplesPerClass)

			if err := w.writeSample(&sample); err != nil {
				return summary, err
			}

			summary.Written++
			if sample.Split == SplitTrain {
				summary.Train++
			} else {
				summary.Val++
			}
			if summary.Written%progressEvery == 0 {
				w.log.Info("Generated %d images", summary.Written)
			}
		}
		w.log.Info("Class %s done (%d samples)", class, w.opts.SamplesPerClass)
	}

	manifest, err := NewManifest(w.opts.OutputDir, w.opts.Classes)
	if err != nil {
		return summary, err
	}
	summary.ManifestPath = filepath.Join(w.opts.OutputDir, ManifestName)
	if err := manifest.Save(summary.ManifestPath); err != nil {
		return summary, err
	}
	summary.Manifest = manifest

	w.log.Info("Dataset ready: %d images (%d train, %d val), manifest %s",
		summary.Written, summary.Train, summary.Val, summary.ManifestPath)
	return summary, nil
}

func (w *Writer) prepareDirs() error {
	for _, split := range []string{SplitTrain, SplitVal} {
		for _, kind := range []string{"images", "labels"} {
			dir := filepath.Join(w.opts.OutputDir, kind, split)
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}
		}
	}
	return nil
}

// SampleStem is the shared file name (without extension) of a sample's
// image and label.
func SampleStem(class string, index int) string {
	return fmt.Sprintf("%s_%04d", class, index)
}

func (w *Writer) writeSample(s *Sample) error {
	stem := SampleStem(s.Class, s.Index)
	imagePath := filepath.Join(w.opts.OutputDir, "images", s.Split, stem+".jpg")
	labelPath := filepath.Join(w.opts.OutputDir, "labels", s.Split, stem+".txt")

	if err := imaging.Save(s.Image, imagePath, imaging.JPEGQuality(w.opts.JPEGQuality)); err != nil {
		return fmt.Errorf("failed to save image %s: %w", imagePath, err)
	}
	if err := os.WriteFile(labelPath, []byte(s.Label.String()+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write label %s: %w", labelPath, err)
	}

	if w.catalog == nil {
		return nil
	}
	b := s.Image.Bounds()
	record := &model.Sample{
		Filename:     filepath.ToSlash(filepath.Join("images", s.Split, stem+".jpg")),
		Class:        s.Class,
		ClassIndex:   s.ClassIndex,
		Split:        s.Split,
		CenterX:      s.Label.Box.CenterX,
		CenterY:      s.Label.Box.CenterY,
		Width:        s.Label.Box.Width,
		Height:       s.Label.Box.Height,
		CanvasWidth:  b.Dx(),
		CanvasHeight: b.Dy(),
		Background:   s.Background.String(),
		Effects:      strings.Join(s.Effects, ","),
		CreatedAt:    time.Now(),
	}
	if _, err := w.catalog.Insert(record); err != nil {
		w.log.Warning("Failed to catalog %s: %v", record.Filename, err)
	}
	return nil
}

func loadIcon(path string) (image.Image, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrIconNotFound)
		}
		return nil, fmt.Errorf("failed to stat icon %s: %w", path, err)
	}
	icon, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load icon %s: %w", path, err)
	}
	return icon, nil
}
