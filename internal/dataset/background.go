package dataset

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// CanvasSizes are the candidate background sizes (width, height).
var CanvasSizes = []image.Point{
	{X: 640, Y: 480},
	{X: 800, Y: 600},
	{X: 1024, Y: 768},
	{X: 1280, Y: 720},
}

// BackgroundKind selects how a canvas is filled.
type BackgroundKind int

const (
	BackgroundSolid BackgroundKind = iota
	BackgroundGradient
	BackgroundNoise
)

func (k BackgroundKind) String() string {
	switch k {
	case BackgroundSolid:
		return "solid"
	case BackgroundGradient:
		return "gradient"
	case BackgroundNoise:
		return "noisy"
	default:
		return "unknown"
	}
}

// RandomCanvasSize picks one of CanvasSizes uniformly.
func RandomCanvasSize(rng Rand) image.Point {
	return CanvasSizes[rng.Intn(len(CanvasSizes))]
}

// Background draws a kind uniformly and renders a width x height canvas.
func Background(rng Rand, width, height int) (*image.NRGBA, BackgroundKind) {
	kind := BackgroundKind(rng.Intn(3))
	return RenderBackground(rng, kind, width, height), kind
}

// RenderBackground fills a canvas of the given kind:
//   - solid: one gray level in [40,220]
//   - gradient: vertical ramp from 100 at the top towards 200 at the bottom
//   - noisy: base gray in [80,180] plus per-channel offsets in [-30,30), clamped
func RenderBackground(rng Rand, kind BackgroundKind, width, height int) *image.NRGBA {
	switch kind {
	case BackgroundSolid:
		v := uint8(40 + rng.Intn(181))
		return imaging.New(width, height, color.NRGBA{R: v, G: v, B: v, A: 255})

	case BackgroundGradient:
		img := image.NewNRGBA(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			v := uint8(100 + int(float64(y)/float64(height)*100))
			row := img.Pix[y*img.Stride : y*img.Stride+width*4]
			for x := 0; x < width; x++ {
				row[x*4+0] = v
				row[x*4+1] = v
				row[x*4+2] = v
				row[x*4+3] = 255
			}
		}
		return img

	default:
		base := 80 + rng.Intn(101)
		img := image.NewNRGBA(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			row := img.Pix[y*img.Stride : y*img.Stride+width*4]
			for x := 0; x < width; x++ {
				for c := 0; c < 3; c++ {
					row[x*4+c] = clampUint8(base + rng.Intn(60) - 30)
				}
				row[x*4+3] = 255
			}
		}
		return img
	}
}

func clampUint8(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
