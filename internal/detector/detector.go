// Package detector wraps a trained symbol detection model behind a
// loaded/unloaded state and converts raw predictions into API results.
package detector

import (
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"droneaid/internal/dataset"
	"droneaid/internal/logger"
	"droneaid/internal/render"
)

// ErrModelNotLoaded is returned by Detect while no model is loaded.
var ErrModelNotLoaded = errors.New("model not loaded, please load a model first")

// SearchPaths are tried in order when no model path is configured.
var SearchPaths = []string{
	"./models/droneaid/weights/best.onnx",
	"./models/best.onnx",
	"./models/droneaid.onnx",
	"../training/models/droneaid/weights/best.onnx",
}

// Prediction is one raw model output in pixel corner coordinates.
type Prediction struct {
	X1, Y1, X2, Y2 float64
	Confidence     float64
	ClassID        int
}

// Model runs inference on a decoded image.
type Model interface {
	Predict(img image.Image, confThreshold float64) ([]Prediction, error)
	Close() error
}

// Loader opens a model artifact.
type Loader func(path string) (Model, error)

// Detection is one detected symbol. BBox is [x, y, width, height] in pixels.
type Detection struct {
	ClassName  string     `json:"class_name"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"`
}

type Result struct {
	Detections       []Detection `json:"detections"`
	ImageWidth       int         `json:"image_width"`
	ImageHeight      int         `json:"image_height"`
	ProcessingTimeMs float64     `json:"processing_time_ms"`
}

// state is either unloaded or loaded.
type state interface {
	isState()
}

type unloaded struct{}

type loaded struct {
	model Model
	path  string
	names []string
}

func (unloaded) isState() {}
func (loaded) isState()   {}

// Service is safe for concurrent use. Model implementations serialise their
// own forward passes.
type Service struct {
	mu     sync.RWMutex
	state  state
	loader Loader
	logger *logger.Logger
}

// New creates the service and tries to load path, or the first existing
// SearchPaths entry when path is empty. A missing or broken model is logged
// and leaves the service unloaded.
func New(loader Loader, path string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	s := &Service{state: unloaded{}, loader: loader, logger: log}

	if path == "" {
		path = findModel(SearchPaths)
	}
	if path == "" {
		s.logger.Warning("No model found. Model will need to be loaded before inference.")
		return s
	}

	if err := s.Load(path); err != nil {
		s.logger.Warning("Could not load detection model: %v", err)
	}
	return s
}

func findModel(candidates []string) string {
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// ResolvePath maps a native .pt checkpoint to its exported .onnx sibling.
func ResolvePath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".pt") {
		return strings.TrimSuffix(path, filepath.Ext(path)) + ".onnx"
	}
	return path
}

// ClassNamesFor reads the "<stem>.yaml" manifest next to a model, falling
// back to the default class list.
func ClassNamesFor(modelPath string) []string {
	sidecar := strings.TrimSuffix(modelPath, filepath.Ext(modelPath)) + ".yaml"
	if m, err := dataset.LoadManifest(sidecar); err == nil && len(m.Names) > 0 {
		return m.Names
	}
	names := make([]string, len(dataset.Classes))
	copy(names, dataset.Classes)
	return names
}

// Load opens the model at path and swaps it in, closing any previous model.
func (s *Service) Load(path string) error {
	path = ResolvePath(path)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("model file not found: %s", path)
	}

	s.logger.Info("Loading model from %s...", path)
	model, err := s.loader(path)
	if err != nil {
		return fmt.Errorf("failed to load model %s: %w", path, err)
	}
	names := ClassNamesFor(path)

	s.mu.Lock()
	previous := s.state
	s.state = loaded{model: model, path: path, names: names}
	s.mu.Unlock()

	if prev, ok := previous.(loaded); ok {
		if err := prev.model.Close(); err != nil {
			s.logger.Warning("Failed to close previous model: %v", err)
		}
	}

	s.logger.Info("Model loaded successfully, classes: %v", names)
	return nil
}

// Loaded reports whether a model is ready.
func (s *Service) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.state.(loaded)
	return ok
}

// ModelPath returns the loaded model's path.
func (s *Service) ModelPath() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l, ok := s.state.(loaded); ok {
		return l.path, true
	}
	return "", false
}

// ClassNames returns the class names of the loaded model, or the defaults.
func (s *Service) ClassNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var names []string
	if l, ok := s.state.(loaded); ok {
		names = l.names
	} else {
		names = dataset.Classes
	}
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Detect runs the model on img and keeps predictions at or above
// confThreshold.
func (s *Service) Detect(img image.Image, confThreshold float64) (*Result, error) {
	// Held across Predict so Close and Load wait for in-flight inference.
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.state.(loaded)
	if !ok {
		return nil, ErrModelNotLoaded
	}

	start := time.Now()
	predictions, err := l.model.Predict(img, confThreshold)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	detections := make([]Detection, 0, len(predictions))
	for _, p := range predictions {
		if p.Confidence < confThreshold {
			continue
		}
		detections = append(detections, Detection{
			ClassName:  className(l.names, p.ClassID),
			Confidence: p.Confidence,
			BBox:       [4]float64{p.X1, p.Y1, p.X2 - p.X1, p.Y2 - p.Y1},
		})
	}

	elapsed := float64(time.Since(start).Microseconds()) / 1000
	b := img.Bounds()
	return &Result{
		Detections:       detections,
		ImageWidth:       b.Dx(),
		ImageHeight:      b.Dy(),
		ProcessingTimeMs: math.Round(elapsed*100) / 100,
	}, nil
}

// DetectWithVisualization runs Detect and also returns a copy of img with
// the boxes and "name: conf" captions drawn in class colours.
func (s *Service) DetectWithVisualization(img image.Image, confThreshold float64) (*Result, *image.NRGBA, error) {
	result, err := s.Detect(img, confThreshold)
	if err != nil {
		return nil, nil, err
	}

	boxes := make([]render.Box, 0, len(result.Detections))
	for _, d := range result.Detections {
		x, y := int(d.BBox[0]), int(d.BBox[1])
		boxes = append(boxes, render.Box{
			Class:   d.ClassName,
			Caption: fmt.Sprintf("%s: %.2f", d.ClassName, d.Confidence),
			Rect:    image.Rect(x, y, int(d.BBox[0]+d.BBox[2]), int(d.BBox[1]+d.BBox[3])),
		})
	}
	return result, render.Annotate(img, boxes), nil
}

// Close releases the loaded model, if any.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.state.(loaded)
	s.state = unloaded{}
	if !ok {
		return nil
	}
	return l.model.Close()
}

func className(names []string, id int) string {
	if id >= 0 && id < len(names) {
		return names[id]
	}
	return fmt.Sprintf("class_%d", id)
}
