package dataset

import (
	"image"
	"image/color"
	"math"
	"testing"
)

// constRand always returns the same draws.
type constRand struct {
	f float64
	i int
}

func (c constRand) Float64() float64 { return c.f }
func (c constRand) Intn(n int) int  { return c.i % n }

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

func testIcon(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 220, G: 30, B: 30, A: 255})
		}
	}
	return img
}

func TestRenderBackground_Solid(t *testing.T) {
	img := RenderBackground(&seqRand{ints: []int{100}}, BackgroundSolid, 64, 48)

	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 48 {
		t.Fatalf("unexpected size %v", img.Bounds())
	}
	got := img.NRGBAAt(10, 10)
	if got.R != 140 || got.G != 140 || got.B != 140 || got.A != 255 {
		t.Errorf("solid pixel = %v, expected gray 140", got)
	}
}

func TestRenderBackground_Gradient(t *testing.T) {
	img := RenderBackground(&seqRand{}, BackgroundGradient, 10, 100)

	if v := img.NRGBAAt(5, 0).R; v != 100 {
		t.Errorf("top row = %d, expected 100", v)
	}
	if v := img.NRGBAAt(5, 50).R; v != 150 {
		t.Errorf("middle row = %d, expected 150", v)
	}
	if v := img.NRGBAAt(5, 99).R; v < 198 || v > 199 {
		t.Errorf("bottom row = %d, expected about 199", v)
	}
}

func TestRenderBackground_NoiseStaysNearBase(t *testing.T) {
	img := RenderBackground(constRand{i: 50}, BackgroundNoise, 8, 8)

	// base = 80 + 50, offset = 50 - 30
	for i := 0; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 150 || img.Pix[i+3] != 255 {
			t.Fatalf("pixel %d = %v, expected 150 opaque", i/4, img.Pix[i:i+4])
		}
	}
}

func TestBackgroundKind_String(t *testing.T) {
	if BackgroundNoise.String() != "noisy" || BackgroundSolid.String() != "solid" {
		t.Error("unexpected background kind names")
	}
}

func TestPipeline_GatesEachStepIndependently(t *testing.T) {
	var ran []string
	step := func(name string) Effect {
		return func(img image.Image, _ Rand) (image.Image, string) {
			ran = append(ran, name)
			return img, name
		}
	}
	p := Pipeline{
		{Name: "a", Probability: 0.5, Apply: step("a")},
		{Name: "b", Probability: 0.5, Apply: step("b")},
		{Name: "c", Probability: 0.1, Apply: step("c")},
	}

	_, applied := p.Run(testIcon(4, 4), &seqRand{floats: []float64{0.1, 0.9, 0.05}})

	if len(applied) != 2 || applied[0] != "a" || applied[1] != "c" {
		t.Errorf("applied = %v, expected [a c]", applied)
	}
	if len(ran) != 2 {
		t.Errorf("ran %d steps, expected 2", len(ran))
	}
}

func TestScenePipeline_Modes(t *testing.T) {
	enhanced := ScenePipeline(EffectsEnhanced)
	if len(enhanced) != 3 || enhanced[0].Name != "weather" || enhanced[2].Name != "edges" {
		t.Errorf("unexpected enhanced pipeline %+v", enhanced)
	}
	basic := ScenePipeline(EffectsBasic)
	if len(basic) != 1 || basic[0].Name != "blur" {
		t.Errorf("unexpected basic pipeline %+v", basic)
	}
	if len(IconPipeline(EffectsBasic)) != 0 {
		t.Error("basic mode should not degrade icons")
	}
}

func TestColorDegradation_KeepsAlpha(t *testing.T) {
	icon := testIcon(6, 6)
	icon.SetNRGBA(0, 0, color.NRGBA{})

	// saturation, brightness, contrast gate (skip)
	out, name := ColorDegradation(icon, &seqRand{floats: []float64{0.5, 0.5, 0.9}})

	if name != "color" {
		t.Errorf("name = %q, expected color", name)
	}
	nrgba := out.(*image.NRGBA)
	if a := nrgba.NRGBAAt(0, 0).A; a != 0 {
		t.Errorf("transparent pixel alpha = %d", a)
	}
	if a := nrgba.NRGBAAt(3, 3).A; a != 255 {
		t.Errorf("opaque pixel alpha = %d", a)
	}
	c := nrgba.NRGBAAt(3, 3)
	if int(c.R)-int(c.G) >= 190 {
		t.Errorf("expected desaturation, got %v", c)
	}
}

func TestWeather_Fog(t *testing.T) {
	canvas := RenderBackground(&seqRand{ints: []int{0}}, BackgroundSolid, 20, 20)

	out, name := Weather(canvas, &seqRand{ints: []int{0}, floats: []float64{0.5}})

	if name != "weather:fog" {
		t.Fatalf("name = %q, expected weather:fog", name)
	}
	r, _, _, _ := out.At(5, 5).RGBA()
	if r>>8 <= 40 {
		t.Errorf("fog should brighten the canvas, got %d", r>>8)
	}
}

func TestCanny_FindsStepEdge(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			v := uint8(0)
			if x >= 10 {
				v = 255
			}
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}

	edges := Canny(img, 50, 150)

	found := false
	for x := 8; x <= 11; x++ {
		if edges.GrayAt(x, 10).Y == 255 {
			found = true
		}
	}
	if !found {
		t.Error("expected an edge near column 10")
	}
	if edges.GrayAt(2, 10).Y != 0 || edges.GrayAt(17, 10).Y != 0 {
		t.Error("flat regions should have no edges")
	}
}

func TestGenerator_PinnedRandomSource(t *testing.T) {
	g := NewGenerator(EffectsEnhanced)

	sample := g.Synthesize(constRand{f: 0.5, i: 0}, testIcon(40, 40), 6)

	if b := sample.Image.Bounds(); b.Dx() != 640 || b.Dy() != 480 {
		t.Fatalf("canvas = %v, expected 640x480", b)
	}
	if len(sample.Effects) != 0 {
		t.Errorf("no effect should fire at 0.5, got %v", sample.Effects)
	}
	want := Label{ClassIndex: 6}
	want.Box.CenterX = 20.0 / 640
	want.Box.CenterY = 20.0 / 480
	want.Box.Width = 40.0 / 640
	want.Box.Height = 40.0 / 480
	if sample.Label.String() != want.String() {
		t.Errorf("label = %q, expected %q", sample.Label.String(), want.String())
	}
	r, g2, b, _ := sample.Image.At(20, 20).RGBA()
	if r>>8 != 220 || g2>>8 != 30 || b>>8 != 30 {
		t.Errorf("icon pixel not pasted at origin: %d %d %d", r>>8, g2>>8, b>>8)
	}
}

func TestGenerator_UnknownModeIsEnhanced(t *testing.T) {
	if NewGenerator("fancy").Mode != EffectsEnhanced {
		t.Error("unknown mode should fall back to enhanced")
	}
}

func TestLabel_StringAndParse(t *testing.T) {
	line := "3 0.500000 0.250000 0.125000 0.062500"

	label, err := ParseLabel(line)
	if err != nil {
		t.Fatalf("ParseLabel: %v", err)
	}
	if label.ClassIndex != 3 || math.Abs(label.Box.CenterY-0.25) > 1e-9 {
		t.Errorf("unexpected label %+v", label)
	}
	if label.String() != line {
		t.Errorf("String() = %q, expected %q", label.String(), line)
	}

	for _, bad := range []string{"", "1 2 3", "x 0.1 0.1 0.1 0.1", "1 0.1 nope 0.1 0.1"} {
		if _, err := ParseLabel(bad); err == nil {
			t.Errorf("ParseLabel(%q) should fail", bad)
		}
	}
}

func TestClassIndex(t *testing.T) {
	if ClassIndex(Classes, "sos") != 6 {
		t.Errorf("sos index = %d, expected 6", ClassIndex(Classes, "sos"))
	}
	if ClassIndex(Classes, "unknown") != -1 {
		t.Error("unknown class should be -1")
	}
}

func TestWeather_Branches(t *testing.T) {
	tests := []struct {
		name   string
		rng    *seqRand
		want   string
		lo, hi uint32
	}{
		// fog: 40*0.7 + 255*0.3
		{"fog", &seqRand{ints: []int{0}, floats: []float64{0.5}}, "weather:fog", 102, 106},
		// haze: level 200 at alpha 0.25, 40*0.75 + 200*0.25
		{"haze", &seqRand{ints: []int{1, 20}, floats: []float64{0.5}}, "weather:haze", 78, 82},
		// glare: brightness x1.35
		{"glare", &seqRand{ints: []int{2}, floats: []float64{0.5}}, "weather:glare", 52, 56},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			canvas := RenderBackground(&seqRand{ints: []int{0}}, BackgroundSolid, 20, 20)

			out, name := Weather(canvas, tt.rng)

			if name != tt.want {
				t.Fatalf("name = %q, expected %q", name, tt.want)
			}
			r, g, b, _ := out.At(5, 5).RGBA()
			if r>>8 < tt.lo || r>>8 > tt.hi {
				t.Errorf("pixel = %d, expected in [%d,%d]", r>>8, tt.lo, tt.hi)
			}
			if r != g || g != b {
				t.Errorf("pixel should stay gray, got %d,%d,%d", r>>8, g>>8, b>>8)
			}
			if len(tt.rng.ints) != 0 || len(tt.rng.floats) != 0 {
				t.Errorf("unused draws: %+v", tt.rng)
			}
		})
	}
}

func TestGaussianBlur_SpreadsPoint(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 21, 21))
	for y := 0; y < 21; y++ {
		for x := 0; x < 21; x++ {
			img.SetNRGBA(x, y, color.NRGBA{A: 255})
		}
	}
	img.SetNRGBA(10, 10, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	out, name := GaussianBlur(img, &seqRand{floats: []float64{0.5}})

	if name != "blur" {
		t.Errorf("name = %q", name)
	}
	center, _, _, _ := out.At(10, 10).RGBA()
	side, _, _, _ := out.At(11, 10).RGBA()
	far, _, _, _ := out.At(2, 2).RGBA()
	if center>>8 >= 255 || side == 0 {
		t.Errorf("blur should spread the point: center=%d side=%d", center>>8, side>>8)
	}
	if far != 0 {
		t.Errorf("far pixel should stay black, got %d", far>>8)
	}
}

func TestEdgeEmphasis_BlendsTenPercent(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			v := uint8(0)
			if x >= 10 {
				v = 255
			}
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}

	out, name := EdgeEmphasis(img, nil)

	if name != "edges" {
		t.Errorf("name = %q", name)
	}
	pixel := func(x, y int) uint32 {
		r, _, _, _ := out.At(x, y).RGBA()
		return r >> 8
	}
	// Dark edge pixel: 0*0.9 + 255*0.1.
	if v := pixel(9, 10); v < 24 || v > 27 {
		t.Errorf("edge pixel = %d, expected about 25", v)
	}
	// Flat bright pixel: 255*0.9 + 0*0.1.
	if v := pixel(17, 10); v < 228 || v > 231 {
		t.Errorf("bright flat pixel = %d, expected about 229", v)
	}
	if v := pixel(2, 10); v != 0 {
		t.Errorf("dark flat pixel = %d, expected 0", v)
	}
}

func TestCanny_UnsmoothedL1Scale(t *testing.T) {
	// A 40-level step gives |gx| = 160 with no pre-blur, just above the
	// high threshold.
	img := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			v := uint8(100)
			if x >= 10 {
				v = 140
			}
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	if Canny(img, 50, 150).GrayAt(9, 10).Y != 255 {
		t.Error("40-level step should be a strong edge")
	}

	// A 30-level step gives 120: weak only, and with nothing strong to
	// connect to it is dropped.
	for y := 0; y < 20; y++ {
		for x := 10; x < 20; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 130, G: 130, B: 130, A: 255})
		}
	}
	edges := Canny(img, 50, 150)
	for x := 0; x < 20; x++ {
		if edges.GrayAt(x, 10).Y != 0 {
			t.Fatalf("30-level step should not produce edges, found one at x=%d", x)
		}
	}
}
