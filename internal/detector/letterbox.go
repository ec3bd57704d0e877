package detector

import "math"

// LetterboxFill is the gray level used to pad letterboxed inputs.
const LetterboxFill = 114

// Letterbox maps an image onto a square model input without distortion:
// scale to fit, then pad both sides evenly.
type Letterbox struct {
	Scale  float64
	Width  int // resized image size before padding
	Height int
	Left   int
	Top    int
	Right  int
	Bottom int
}

// NewLetterbox fits a srcW x srcH image into a size x size input.
func NewLetterbox(srcW, srcH, size int) Letterbox {
	r := math.Min(float64(size)/float64(srcW), float64(size)/float64(srcH))
	w := int(math.Round(float64(srcW) * r))
	h := int(math.Round(float64(srcH) * r))

	dw := float64(size-w) / 2
	dh := float64(size-h) / 2
	left := int(math.Round(dw - 0.1))
	top := int(math.Round(dh - 0.1))

	return Letterbox{
		Scale:  r,
		Width:  w,
		Height: h,
		Left:   left,
		Top:    top,
		Right:  size - w - left,
		Bottom: size - h - top,
	}
}

// ToSource maps a point in model input space back to the source image.
func (l Letterbox) ToSource(x, y float64) (float64, float64) {
	return (x - float64(l.Left)) / l.Scale, (y - float64(l.Top)) / l.Scale
}
