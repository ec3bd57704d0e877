package dataset

import (
	"bufio"
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"droneaid/internal/model"

	"github.com/disintegration/imaging"
)

type recordingCatalog struct {
	samples []model.Sample
}

func (c *recordingCatalog) Insert(s *model.Sample) (int64, error) {
	c.samples = append(c.samples, *s)
	return int64(len(c.samples)), nil
}

func setupIcons(t *testing.T, classes ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, class := range classes {
		if err := imaging.Save(testIcon(48, 32), IconPath(dir, class)); err != nil {
			t.Fatalf("failed to write icon: %v", err)
		}
	}
	return dir
}

func readLabel(t *testing.T, path string) Label {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open label: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		t.Fatalf("label %s is empty", path)
	}
	label, err := ParseLabel(scanner.Text())
	if err != nil {
		t.Fatalf("failed to parse %s: %v", path, err)
	}
	if scanner.Scan() {
		t.Errorf("label %s has more than one line", path)
	}
	return label
}

func TestTrainCount(t *testing.T) {
	tests := []struct{ n, want int }{
		{1, 0}, {5, 4}, {9, 7}, {10, 8}, {150, 120},
	}
	for _, tt := range tests {
		if got := TrainCount(tt.n); got != tt.want {
			t.Errorf("TrainCount(%d) = %d, expected %d", tt.n, got, tt.want)
		}
	}
	if SplitFor(3, 5) != SplitTrain || SplitFor(4, 5) != SplitVal {
		t.Error("unexpected split for 5 samples")
	}
}

func TestWriter_Generate(t *testing.T) {
	icons := setupIcons(t, "sos", "ok")
	out := t.TempDir()
	catalog := &recordingCatalog{}

	w := NewWriter(Options{
		IconsDir:        icons,
		OutputDir:       out,
		Classes:         []string{"sos", "ok", "water"},
		SamplesPerClass: 5,
		Mode:            EffectsEnhanced,
	}, rand.New(rand.NewSource(1)), nil).WithCatalog(catalog)

	summary, err := w.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if summary.Written != 10 || summary.Train != 8 || summary.Val != 2 {
		t.Errorf("summary = %+v", summary)
	}
	if len(summary.Skipped) != 1 || summary.Skipped[0] != "water" {
		t.Errorf("skipped = %v, expected [water]", summary.Skipped)
	}
	if len(catalog.samples) != 10 {
		t.Errorf("catalog got %d samples, expected 10", len(catalog.samples))
	}

	for i := 0; i < 5; i++ {
		split := SplitFor(i, 5)
		for classIndex, class := range []string{"sos", "ok"} {
			stem := SampleStem(class, i)
			if _, err := os.Stat(filepath.Join(out, "images", split, stem+".jpg")); err != nil {
				t.Errorf("missing image for %s: %v", stem, err)
			}
			label := readLabel(t, filepath.Join(out, "labels", split, stem+".txt"))
			if label.ClassIndex != classIndex {
				t.Errorf("%s class index = %d, expected %d", stem, label.ClassIndex, classIndex)
			}
			if !label.Box.Valid() {
				t.Errorf("%s label out of bounds: %+v", stem, label.Box)
			}
		}
	}

	m, err := LoadManifest(summary.ManifestPath)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if m.NC != 3 || m.Names[2] != "water" || m.Train != TrainImagesDir || m.Val != ValImagesDir {
		t.Errorf("unexpected manifest %+v", m)
	}
	if !filepath.IsAbs(m.Path) {
		t.Errorf("manifest path %q should be absolute", m.Path)
	}
}

func TestWriter_DeterministicLabels(t *testing.T) {
	icons := setupIcons(t, "food")

	run := func() string {
		out := t.TempDir()
		w := NewWriter(Options{
			IconsDir:        icons,
			OutputDir:       out,
			Classes:         []string{"food"},
			SamplesPerClass: 3,
		}, rand.New(rand.NewSource(42)), nil)
		if _, err := w.Generate(context.Background()); err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		return out
	}

	first, second := run(), run()
	for i := 0; i < 3; i++ {
		rel := filepath.Join("labels", SplitFor(i, 3), SampleStem("food", i)+".txt")
		a := readLabel(t, filepath.Join(first, rel))
		b := readLabel(t, filepath.Join(second, rel))
		if a != b {
			t.Errorf("%s differs between runs: %v vs %v", rel, a, b)
		}
	}
}

func TestWriter_StopsOnCancel(t *testing.T) {
	icons := setupIcons(t, "sos")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := NewWriter(Options{
		IconsDir:        icons,
		OutputDir:       t.TempDir(),
		Classes:         []string{"sos"},
		SamplesPerClass: 3,
	}, rand.New(rand.NewSource(1)), nil)

	summary, err := w.Generate(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if summary.Written != 0 {
		t.Errorf("written = %d, expected 0", summary.Written)
	}
}

func TestWriter_RejectsZeroSamples(t *testing.T) {
	w := NewWriter(Options{OutputDir: t.TempDir()}, rand.New(rand.NewSource(1)), nil)
	if _, err := w.Generate(context.Background()); err == nil {
		t.Error("expected error for zero samples per class")
	}
}

func TestManifest_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManifest(dir, Classes)
	if err != nil {
		t.Fatalf("NewManifest: %v", err)
	}
	path := filepath.Join(dir, ManifestName)
	if err := m.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if loaded.Path != m.Path || loaded.NC != 8 || len(loaded.Names) != 8 || loaded.Names[0] != "children" {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
}

func TestLoadManifest_RejectsMismatchedCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), ManifestName)
	if err := os.WriteFile(path, []byte("path: /x\ntrain: images/train\nval: images/val\nnc: 3\nnames: [a, b]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadManifest(path); err == nil {
		t.Error("expected error for nc/names mismatch")
	}
}

func TestScan_RebuildsCatalogRecords(t *testing.T) {
	icons := setupIcons(t, "shelter")
	out := t.TempDir()
	catalog := &recordingCatalog{}

	w := NewWriter(Options{
		IconsDir:        icons,
		OutputDir:       out,
		SamplesPerClass: 5,
	}, rand.New(rand.NewSource(3)), nil).WithCatalog(catalog)
	if _, err := w.Generate(context.Background()); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(out, "labels", "train", "notes.txt"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	result, err := Scan(out, Classes)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(result.Samples) != 5 {
		t.Fatalf("expected 5 samples, got %d (skipped %v)", len(result.Samples), result.Skipped)
	}
	if len(result.Skipped) != 1 {
		t.Errorf("expected the stray file to be skipped, got %v", result.Skipped)
	}

	written := make(map[string]model.Sample)
	for _, s := range catalog.samples {
		written[s.Filename] = s
	}
	for _, s := range result.Samples {
		orig, ok := written[s.Filename]
		if !ok {
			t.Errorf("scanned unknown sample %s", s.Filename)
			continue
		}
		if s.Class != "shelter" || s.ClassIndex != 5 || s.Split != orig.Split {
			t.Errorf("scanned %+v, generated %+v", s, orig)
		}
		if s.CanvasWidth != orig.CanvasWidth || s.CanvasHeight != orig.CanvasHeight {
			t.Errorf("%s canvas %dx%d, expected %dx%d", s.Filename, s.CanvasWidth, s.CanvasHeight, orig.CanvasWidth, orig.CanvasHeight)
		}
	}
}
