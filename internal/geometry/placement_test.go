package geometry

import (
	"image"
	"image/color"
	"math"
	"math/rand"
	"testing"
)

// seqRand replays fixed values; Intn returns its value modulo n.
type seqRand struct {
	floats []float64
	ints   []int
}

func (s *seqRand) Float64() float64 {
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}

func (s *seqRand) Intn(n int) int {
	v := s.ints[0]
	s.ints = s.ints[1:]
	return v % n
}

func solidIcon(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 108, A: 255})
		}
	}
	return img
}

func TestRandomTransform_Ranges(t *testing.T) {
	tests := []struct {
		name      string
		draws     []float64
		wantScale float64
		wantAngle float64
	}{
		{"lowest", []float64{0, 0}, 0.5, -30},
		{"middle", []float64{0.5, 0.5}, 1.0, 0},
		{"near top", []float64{0.75, 0.25}, 1.25, -15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := RandomTransform(&seqRand{floats: tt.draws})
			if math.Abs(tr.Scale-tt.wantScale) > 1e-9 {
				t.Errorf("Scale = %v, expected %v", tr.Scale, tt.wantScale)
			}
			if math.Abs(tr.Angle-tt.wantAngle) > 1e-9 {
				t.Errorf("Angle = %v, expected %v", tr.Angle, tt.wantAngle)
			}
		})
	}
}

func TestTransformApply_ScaleOnly(t *testing.T) {
	out := Transform{Scale: 0.5, Angle: 0}.Apply(solidIcon(100, 60))

	if out.Bounds().Dx() != 50 || out.Bounds().Dy() != 30 {
		t.Errorf("got %dx%d, expected 50x30", out.Bounds().Dx(), out.Bounds().Dy())
	}
}

func TestTransformApply_RotationExpandsCanvas(t *testing.T) {
	out := Transform{Scale: 1, Angle: 30}.Apply(solidIcon(100, 100))

	if out.Bounds().Dx() <= 100 || out.Bounds().Dy() <= 100 {
		t.Errorf("rotated bounds should grow, got %dx%d", out.Bounds().Dx(), out.Bounds().Dy())
	}
	// Corners of the expanded canvas lie outside the rotated square.
	if a := out.NRGBAAt(0, 0).A; a != 0 {
		t.Errorf("corner should be transparent, alpha=%d", a)
	}
}

func TestPlace_InsideCanvas(t *testing.T) {
	fp := Place(&seqRand{ints: []int{40, 7}}, 100, 80, 640, 480)

	if fp.X != 40 || fp.Y != 7 {
		t.Errorf("origin = (%d,%d), expected (40,7)", fp.X, fp.Y)
	}
	if fp.Width != 100 || fp.Height != 80 {
		t.Errorf("size = %dx%d, expected 100x80", fp.Width, fp.Height)
	}
}

func TestPlace_LargerThanCanvas(t *testing.T) {
	// No draws should be needed: both dimensions degenerate.
	fp := Place(&seqRand{}, 900, 700, 640, 480)

	if fp.X != 0 || fp.Y != 0 {
		t.Errorf("origin = (%d,%d), expected (0,0)", fp.X, fp.Y)
	}
	if fp.Width != 640 || fp.Height != 480 {
		t.Errorf("footprint should be clipped to canvas, got %dx%d", fp.Width, fp.Height)
	}
	if !fp.Normalize(640, 480).Valid() {
		t.Error("clipped footprint should produce a valid box")
	}
}

func TestPlace_ExactFit(t *testing.T) {
	fp := Place(&seqRand{}, 640, 480, 640, 480)
	box := fp.Normalize(640, 480)

	if box.Width != 1 || box.Height != 1 || box.CenterX != 0.5 || box.CenterY != 0.5 {
		t.Errorf("unexpected box %+v", box)
	}
}

func TestNormalize_Formula(t *testing.T) {
	fp := Footprint{X: 100, Y: 50, Width: 200, Height: 120}
	box := fp.Normalize(800, 600)

	want := BBox{
		CenterX: (100 + 100.0) / 800,
		CenterY: (50 + 60.0) / 600,
		Width:   200.0 / 800,
		Height:  120.0 / 600,
	}
	if box != want {
		t.Errorf("Normalize = %+v, expected %+v", box, want)
	}
}

func TestPlace_RandomBoxesStayInBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	sizes := [][2]int{{640, 480}, {800, 600}, {1024, 768}, {1280, 720}}

	for i := 0; i < 2000; i++ {
		bg := sizes[rng.Intn(len(sizes))]
		iconW := 20 + rng.Intn(900)
		iconH := 20 + rng.Intn(900)

		box := Place(rng, iconW, iconH, bg[0], bg[1]).Normalize(bg[0], bg[1])
		if !box.Valid() {
			t.Fatalf("iteration %d: box out of bounds %+v (icon %dx%d, bg %v)", i, box, iconW, iconH, bg)
		}
	}
}
