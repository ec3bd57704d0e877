package training

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"droneaid/internal/dataset"
)

const valTable = `Ultralytics YOLOv8.0.0 Python-3.10 torch-2.1 CPU
Model summary (fused): 168 layers, 3006623 parameters, 0 gradients
                 Class     Images  Instances      Box(P          R      mAP50  mAP50-95): 100%|##########| 5/5
                   all        150        150      0.912      0.884      0.931      0.713
                   sos         30         30      0.950      0.900      0.960      0.750
Speed: 0.5ms preprocess, 12.1ms inference, 0.0ms loss, 1.1ms postprocess per image
`

type call struct {
	name string
	args []string
}

// fakeRunner records calls and simulates the YOLO tool's side effects.
type fakeRunner struct {
	calls     []call
	gpu       bool
	weightDir string
	writeBest bool
	valOut    string
	failOn    string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, call{name: name, args: args})
	if name == "nvidia-smi" {
		if f.gpu {
			return []byte("GPU 0: NVIDIA A100 (UUID: GPU-1234)\n"), nil
		}
		return nil, errors.New("not found")
	}
	if len(args) == 0 {
		return nil, nil
	}
	step := args[0]
	if step == "detect" && len(args) > 1 {
		step = args[1]
	}
	if step == f.failOn {
		return []byte("boom"), errors.New("exit status 1")
	}
	switch step {
	case "train":
		if f.writeBest {
			if err := os.MkdirAll(f.weightDir, 0755); err != nil {
				return nil, err
			}
			if err := os.WriteFile(filepath.Join(f.weightDir, "best.pt"), []byte("pt"), 0644); err != nil {
				return nil, err
			}
		}
	case "val":
		return []byte(f.valOut), nil
	case "export":
		if err := os.WriteFile(filepath.Join(f.weightDir, "best.onnx"), []byte("onnx"), 0644); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (f *fakeRunner) steps() []string {
	var out []string
	for _, c := range f.calls {
		if c.name == "nvidia-smi" {
			out = append(out, c.name)
			continue
		}
		step := c.args[0]
		if step == "detect" {
			step = c.args[1]
		}
		out = append(out, step)
	}
	return out
}

type fakeBuilder struct {
	summary *dataset.Summary
	err     error
}

func (b *fakeBuilder) Generate(ctx context.Context) (*dataset.Summary, error) {
	return b.summary, b.err
}

func testSetup(t *testing.T) (Options, *fakeBuilder) {
	t.Helper()
	dir := t.TempDir()
	manifest, err := dataset.NewManifest(filepath.Join(dir, "data"), dataset.Classes)
	if err != nil {
		t.Fatalf("NewManifest: %v", err)
	}
	opts := Options{
		BaseModel:    "yolov8n.pt",
		Epochs:       3,
		ImageSize:    640,
		BatchSize:    8,
		Patience:     2,
		ProjectDir:   filepath.Join(dir, "models"),
		RunName:      "run",
		YoloCommand:  "yolo",
		Augmentation: DefaultAugmentation(),
	}
	builder := &fakeBuilder{summary: &dataset.Summary{
		Written:      10,
		Train:        8,
		Val:          2,
		ManifestPath: filepath.Join(dir, "data", dataset.ManifestName),
		Manifest:     manifest,
	}}
	return opts, builder
}

func TestDriver_FullRun(t *testing.T) {
	opts, builder := testSetup(t)
	runner := &fakeRunner{
		weightDir: filepath.Join(opts.RunDir(), "weights"),
		writeBest: true,
		valOut:    valTable,
	}

	report, err := NewDriver(opts, runner, builder, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []string{"nvidia-smi", "train", "val", "export"}
	if got := runner.steps(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("steps = %v, expected %v", got, want)
	}
	if report.Device != DeviceCPU {
		t.Errorf("Device = %q, expected cpu", report.Device)
	}
	if report.Metrics == nil || report.Metrics.MAP50 != 0.931 || report.Metrics.MAP50_95 != 0.713 {
		t.Errorf("unexpected metrics %+v", report.Metrics)
	}
	if report.ONNXPath != filepath.Join(opts.RunDir(), "weights", "best.onnx") {
		t.Errorf("ONNXPath = %q", report.ONNXPath)
	}

	sidecar, err := dataset.LoadManifest(filepath.Join(opts.RunDir(), "weights", "best.yaml"))
	if err != nil {
		t.Fatalf("class sidecar not written: %v", err)
	}
	if sidecar.NC != len(dataset.Classes) {
		t.Errorf("sidecar nc = %d", sidecar.NC)
	}
}

func TestDriver_MissingBestSkipsExport(t *testing.T) {
	opts, builder := testSetup(t)
	runner := &fakeRunner{weightDir: filepath.Join(opts.RunDir(), "weights"), valOut: valTable}

	report, err := NewDriver(opts, runner, builder, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.ONNXPath != "" {
		t.Errorf("expected no export, got %q", report.ONNXPath)
	}
	for _, s := range runner.steps() {
		if s == "export" {
			t.Error("export should not run without best.pt")
		}
	}
}

func TestDriver_Failures(t *testing.T) {
	t.Run("dataset", func(t *testing.T) {
		opts, builder := testSetup(t)
		builder.err = errors.New("disk full")
		_, err := NewDriver(opts, &fakeRunner{}, builder, nil).Run(context.Background())
		if err == nil || !strings.Contains(err.Error(), "dataset preparation") {
			t.Errorf("unexpected error %v", err)
		}
	})

	t.Run("empty dataset", func(t *testing.T) {
		opts, builder := testSetup(t)
		builder.summary.Written = 0
		if _, err := NewDriver(opts, &fakeRunner{}, builder, nil).Run(context.Background()); err == nil {
			t.Error("expected error for empty dataset")
		}
	})

	t.Run("train", func(t *testing.T) {
		opts, builder := testSetup(t)
		runner := &fakeRunner{failOn: "train"}
		_, err := NewDriver(opts, runner, builder, nil).Run(context.Background())
		if err == nil || !strings.Contains(err.Error(), "training failed") {
			t.Errorf("unexpected error %v", err)
		}
	})
}

func TestDriver_ConfiguredDeviceSkipsProbe(t *testing.T) {
	opts, builder := testSetup(t)
	opts.Device = "mps"
	runner := &fakeRunner{weightDir: filepath.Join(opts.RunDir(), "weights"), valOut: valTable}

	report, err := NewDriver(opts, runner, builder, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Device != "mps" {
		t.Errorf("Device = %q", report.Device)
	}
	if runner.steps()[0] == "nvidia-smi" {
		t.Error("device probe should be skipped")
	}
}

func TestDetectDevice(t *testing.T) {
	if got := DetectDevice(context.Background(), &fakeRunner{gpu: true}, nil); got != DeviceCUDA {
		t.Errorf("with GPU got %q", got)
	}
	if got := DetectDevice(context.Background(), &fakeRunner{}, nil); got != DeviceCPU {
		t.Errorf("without GPU got %q", got)
	}
}

func TestTrainArgs(t *testing.T) {
	opts, _ := testSetup(t)
	args := strings.Join(TrainArgs(opts, "/data/dataset.yaml", "cpu"), " ")

	for _, want := range []string{
		"detect train",
		"model=yolov8n.pt",
		"data=/data/dataset.yaml",
		"epochs=3",
		"imgsz=640",
		"batch=8",
		"device=cpu",
		"exist_ok=True",
		"patience=2",
		"degrees=15.0",
		"flipud=0.0",
		"fliplr=0.5",
		"mosaic=1.0",
		"hsv_h=0.015",
	} {
		if !strings.Contains(args, want) {
			t.Errorf("train args missing %q: %s", want, args)
		}
	}
}

func TestExportArgs(t *testing.T) {
	got := strings.Join(ExportArgs("best.pt", 640), " ")
	if got != "export model=best.pt format=onnx imgsz=640 simplify=True" {
		t.Errorf("unexpected export args %q", got)
	}
}
