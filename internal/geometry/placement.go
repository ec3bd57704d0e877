// Package geometry computes where a symbol icon lands on a synthetic canvas
// and the normalized YOLO box describing it.
package geometry

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

const (
	MinScale = 0.5
	MaxScale = 1.5
	MaxAngle = 30.0 // degrees, symmetric around 0
)

// Rand is the random source used by every generator step. *rand.Rand
// satisfies it; tests pass a fixed sequence instead.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// Uniform draws a float in [lo, hi).
func Uniform(rng Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}

// Transform is the scale and rotation applied to an icon before pasting.
type Transform struct {
	Scale float64
	Angle float64 // degrees, counter-clockwise
}

// RandomTransform draws scale then angle, in that order.
func RandomTransform(rng Rand) Transform {
	return Transform{
		Scale: Uniform(rng, MinScale, MaxScale),
		Angle: Uniform(rng, -MaxAngle, MaxAngle),
	}
}

// Apply scales the icon with Lanczos resampling and rotates it, expanding the
// output so the whole rotated icon fits. Pixels outside the icon stay
// transparent.
func (t Transform) Apply(icon image.Image) *image.NRGBA {
	b := icon.Bounds()
	w := int(float64(b.Dx()) * t.Scale)
	h := int(float64(b.Dy()) * t.Scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	scaled := imaging.Resize(icon, w, h, imaging.Lanczos)
	if t.Angle == 0 {
		return scaled
	}
	return imaging.Rotate(scaled, t.Angle, color.Transparent)
}

// Footprint is the pixel region a pasted icon occupies on the canvas.
type Footprint struct {
	X, Y          int
	Width, Height int
}

// Place picks the top-left corner uniformly among positions that keep an
// iconW x iconH region inside a bgW x bgH canvas (x first, then y). A
// dimension where the icon is larger than the canvas degenerates to 0 and the
// footprint is clipped to the canvas there.
func Place(rng Rand, iconW, iconH, bgW, bgH int) Footprint {
	x := randomOffset(rng, bgW-iconW)
	y := randomOffset(rng, bgH-iconH)

	return Footprint{
		X:      x,
		Y:      y,
		Width:  minInt(iconW, bgW-x),
		Height: minInt(iconH, bgH-y),
	}
}

func randomOffset(rng Rand, maxOffset int) int {
	if maxOffset <= 0 {
		return 0
	}
	return rng.Intn(maxOffset + 1)
}

// Point returns the paste origin.
func (f Footprint) Point() image.Point {
	return image.Pt(f.X, f.Y)
}

// BBox is a YOLO-style box: normalized center and extent.
type BBox struct {
	CenterX float64
	CenterY float64
	Width   float64
	Height  float64
}

// Normalize converts the footprint into a box relative to the canvas.
func (f Footprint) Normalize(bgW, bgH int) BBox {
	w := float64(bgW)
	h := float64(bgH)
	return BBox{
		CenterX: (float64(f.X) + float64(f.Width)/2) / w,
		CenterY: (float64(f.Y) + float64(f.Height)/2) / h,
		Width:   float64(f.Width) / w,
		Height:  float64(f.Height) / h,
	}
}

// Valid reports whether the box and its extent lie inside [0,1].
func (b BBox) Valid() bool {
	const eps = 1e-9
	in := func(v float64) bool { return v >= -eps && v <= 1+eps && !math.IsNaN(v) }
	return in(b.CenterX) && in(b.CenterY) && in(b.Width) && in(b.Height) &&
		in(b.CenterX-b.Width/2) && in(b.CenterX+b.Width/2) &&
		in(b.CenterY-b.Height/2) && in(b.CenterY+b.Height/2)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
