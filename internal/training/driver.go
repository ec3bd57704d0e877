// Package training drives the YOLO command line tool: dataset preparation,
// training, validation and ONNX export.
package training

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"droneaid/internal/command"
	"droneaid/internal/config"
	"droneaid/internal/dataset"
	"droneaid/internal/logger"
)

// Augmentation holds the YOLO data augmentation hyperparameters.
type Augmentation struct {
	HsvH      float64
	HsvS      float64
	HsvV      float64
	Degrees   float64
	Translate float64
	Scale     float64
	FlipUD    float64
	FlipLR    float64
	Mosaic    float64
}

// DefaultAugmentation suits aerial symbol imagery: mild colour jitter, small
// rotations, no vertical flips.
func DefaultAugmentation() Augmentation {
	return Augmentation{
		HsvH:      0.015,
		HsvS:      0.7,
		HsvV:      0.4,
		Degrees:   15.0,
		Translate: 0.1,
		Scale:     0.5,
		FlipUD:    0.0,
		FlipLR:    0.5,
		Mosaic:    1.0,
	}
}

type Options struct {
	BaseModel    string
	Epochs       int
	ImageSize    int
	BatchSize    int
	Patience     int
	ProjectDir   string
	RunName      string
	YoloCommand  string
	Device       string // empty = probe
	Augmentation Augmentation
}

// OptionsFromConfig copies the training settings out of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BaseModel:    cfg.BaseModel,
		Epochs:       cfg.Epochs,
		ImageSize:    cfg.ImageSize,
		BatchSize:    cfg.BatchSize,
		Patience:     cfg.Patience,
		ProjectDir:   cfg.ProjectDir,
		RunName:      cfg.RunName,
		YoloCommand:  cfg.YoloCommand,
		Augmentation: DefaultAugmentation(),
	}
}

// RunDir is where the YOLO tool writes this run.
func (o Options) RunDir() string {
	return filepath.Join(o.ProjectDir, o.RunName)
}

// BestWeights is the best checkpoint of the run.
func (o Options) BestWeights() string {
	return filepath.Join(o.RunDir(), "weights", "best.pt")
}

// DatasetBuilder produces the dataset the model is trained on.
type DatasetBuilder interface {
	Generate(ctx context.Context) (*dataset.Summary, error)
}

// Report summarises a finished run.
type Report struct {
	Device      string
	Dataset     *dataset.Summary
	Metrics     *Metrics
	BestWeights string
	ONNXPath    string // empty when the best checkpoint was missing
}

// Driver runs the steps of a training run in order.
type Driver struct {
	opts    Options
	runner  command.Runner
	builder DatasetBuilder
	logger  *logger.Logger
}

func NewDriver(opts Options, runner command.Runner, builder DatasetBuilder, log *logger.Logger) *Driver {
	if log == nil {
		log = logger.NewNop()
	}
	return &Driver{opts: opts, runner: runner, builder: builder, logger: log}
}

// Run prepares the dataset, trains, validates and exports. A missing best
// checkpoint after training is reported as a warning and skips the export.
func (d *Driver) Run(ctx context.Context) (*Report, error) {
	report := &Report{Device: d.opts.Device}
	if report.Device == "" {
		report.Device = DetectDevice(ctx, d.runner, d.logger)
	}
	d.logger.Info("Using device: %s", report.Device)

	d.logger.Info("[1/3] Preparing dataset...")
	summary, err := d.builder.Generate(ctx)
	if err != nil {
		return nil, fmt.Errorf("dataset preparation failed: %w", err)
	}
	if summary.Written == 0 {
		return nil, fmt.Errorf("dataset preparation produced no images")
	}
	report.Dataset = summary

	d.logger.Info("[2/3] Initializing base model %s...", d.opts.BaseModel)
	if _, err := os.Stat(d.opts.BaseModel); err != nil {
		d.logger.Info("Base model %s not present locally, the YOLO tool will download it", d.opts.BaseModel)
	}

	d.logger.Info("[3/3] Starting training: epochs=%d imgsz=%d batch=%d device=%s",
		d.opts.Epochs, d.opts.ImageSize, d.opts.BatchSize, report.Device)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := d.runner.Run(ctx, d.opts.YoloCommand, TrainArgs(d.opts, summary.ManifestPath, report.Device)...); err != nil {
		return nil, fmt.Errorf("training failed: %w", err)
	}

	report.BestWeights = d.opts.BestWeights()
	weights := report.BestWeights
	if _, err := os.Stat(weights); err != nil {
		d.logger.Warning("Best model not found: %s", weights)
		weights = filepath.Join(d.opts.RunDir(), "weights", "last.pt")
	}

	d.logger.Info("Validating trained model...")
	out, err := d.runner.Run(ctx, d.opts.YoloCommand, ValArgs(d.opts, weights, summary.ManifestPath, report.Device)...)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	metrics, err := ParseValOutput(out)
	if err != nil {
		d.logger.Warning("Could not parse validation output (%v), reading results.csv", err)
		metrics, err = ReadResultsCSV(filepath.Join(d.opts.RunDir(), "results.csv"))
	}
	if err != nil {
		d.logger.Warning("No metrics available: %v", err)
	} else {
		report.Metrics = metrics
		d.logger.Info("Training results: mAP50=%.4f mAP50-95=%.4f precision=%.4f recall=%.4f",
			metrics.MAP50, metrics.MAP50_95, metrics.Precision, metrics.Recall)
	}

	if _, err := os.Stat(report.BestWeights); err != nil {
		d.logger.Warning("Best model not found, skipping ONNX export")
		return report, nil
	}

	d.logger.Info("Exporting model to ONNX format...")
	if _, err := d.runner.Run(ctx, d.opts.YoloCommand, ExportArgs(report.BestWeights, d.opts.ImageSize)...); err != nil {
		return nil, fmt.Errorf("export failed: %w", err)
	}
	report.ONNXPath = strings.TrimSuffix(report.BestWeights, filepath.Ext(report.BestWeights)) + ".onnx"

	if err := writeClassSidecar(report.ONNXPath, summary); err != nil {
		d.logger.Warning("Failed to write class names next to model: %v", err)
	}

	d.logger.Info("Model exported: %s (PyTorch %s)", report.ONNXPath, report.BestWeights)
	return report, nil
}

// writeClassSidecar stores the dataset manifest as <model>.yaml so the
// inference server can name classes without the training dataset.
func writeClassSidecar(modelPath string, summary *dataset.Summary) error {
	if summary.Manifest == nil {
		return fmt.Errorf("no manifest")
	}
	sidecar := strings.TrimSuffix(modelPath, filepath.Ext(modelPath)) + ".yaml"
	return summary.Manifest.Save(sidecar)
}

// TrainArgs builds the "yolo detect train" argument list.
func TrainArgs(o Options, dataYAML, device string) []string {
	a := o.Augmentation
	return []string{
		"detect", "train",
		"model=" + o.BaseModel,
		"data=" + dataYAML,
		"epochs=" + strconv.Itoa(o.Epochs),
		"imgsz=" + strconv.Itoa(o.ImageSize),
		"batch=" + strconv.Itoa(o.BatchSize),
		"device=" + device,
		"project=" + o.ProjectDir,
		"name=" + o.RunName,
		"exist_ok=True",
		"patience=" + strconv.Itoa(o.Patience),
		"save=True",
		"plots=True",
		"verbose=True",
		"val=True",
		"hsv_h=" + formatFloat(a.HsvH),
		"hsv_s=" + formatFloat(a.HsvS),
		"hsv_v=" + formatFloat(a.HsvV),
		"degrees=" + formatFloat(a.Degrees),
		"translate=" + formatFloat(a.Translate),
		"scale=" + formatFloat(a.Scale),
		"flipud=" + formatFloat(a.FlipUD),
		"fliplr=" + formatFloat(a.FlipLR),
		"mosaic=" + formatFloat(a.Mosaic),
	}
}

// ValArgs builds the "yolo detect val" argument list.
func ValArgs(o Options, weights, dataYAML, device string) []string {
	return []string{
		"detect", "val",
		"model=" + weights,
		"data=" + dataYAML,
		"imgsz=" + strconv.Itoa(o.ImageSize),
		"batch=" + strconv.Itoa(o.BatchSize),
		"device=" + device,
		"project=" + o.ProjectDir,
		"name=" + o.RunName + "_val",
		"exist_ok=True",
	}
}

// ExportArgs builds the "yolo export" argument list for ONNX.
func ExportArgs(weights string, imageSize int) []string {
	return []string{
		"export",
		"model=" + weights,
		"format=onnx",
		"imgsz=" + strconv.Itoa(imageSize),
		"simplify=True",
	}
}

func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
