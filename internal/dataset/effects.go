package dataset

import (
	"image"
	"image/color"

	"droneaid/internal/geometry"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/blend"
	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"
)

// Rand is the injected random source shared by every generation step.
type Rand = geometry.Rand

// Effect transforms an image and names what it did (e.g. "weather:fog").
type Effect func(img image.Image, rng Rand) (image.Image, string)

// Step is one gated entry of a Pipeline: Apply runs when a fresh draw falls
// below Probability.
type Step struct {
	Name        string
	Probability float64
	Apply       Effect
}

// Pipeline is an ordered list of independent steps. Every step consumes its
// own gate draw whether or not an earlier step fired.
type Pipeline []Step

// Run applies the steps in order and returns the result plus the names of
// the effects that fired.
func (p Pipeline) Run(img image.Image, rng Rand) (image.Image, []string) {
	var applied []string
	for _, step := range p {
		if rng.Float64() >= step.Probability {
			continue
		}
		var name string
		img, name = step.Apply(img, rng)
		applied = append(applied, name)
	}
	return img, applied
}

const (
	EffectsEnhanced = "enhanced"
	EffectsBasic    = "basic"
)

// IconPipeline is applied to the icon before it is scaled, rotated and pasted.
func IconPipeline(mode string) Pipeline {
	if mode == EffectsBasic {
		return nil
	}
	return Pipeline{
		{Name: "color", Probability: 0.5, Apply: ColorDegradation},
	}
}

// ScenePipeline is applied to the composited canvas, in this order.
func ScenePipeline(mode string) Pipeline {
	if mode == EffectsBasic {
		return Pipeline{
			{Name: "blur", Probability: 0.2, Apply: GaussianBlur},
		}
	}
	return Pipeline{
		{Name: "weather", Probability: 0.3, Apply: Weather},
		{Name: "blur", Probability: 0.2, Apply: GaussianBlur},
		{Name: "edges", Probability: 0.2, Apply: EdgeEmphasis},
	}
}

// ColorDegradation desaturates to a factor in [0.3,0.7], scales brightness by
// [0.7,1.3] and, with probability 0.3, lowers contrast to [0.5,0.8].
// Transparency is preserved.
func ColorDegradation(img image.Image, rng Rand) (image.Image, string) {
	saturation := geometry.Uniform(rng, 0.3, 0.7)
	brightness := geometry.Uniform(rng, 0.7, 1.3)

	out := imaging.AdjustSaturation(img, (saturation-1)*100)
	out = scaleBrightness(out, brightness)

	if rng.Float64() < 0.3 {
		contrast := geometry.Uniform(rng, 0.5, 0.8)
		out = imaging.AdjustContrast(out, (contrast-1)*100)
		return out, "color+contrast"
	}
	return out, "color"
}

// scaleBrightness multiplies RGB by factor on non-premultiplied pixels so the
// icon's alpha channel is left alone.
func scaleBrightness(img image.Image, factor float64) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: clampUint8(int(float64(c.R) * factor)),
			G: clampUint8(int(float64(c.G) * factor)),
			B: clampUint8(int(float64(c.B) * factor)),
			A: c.A,
		}
	})
}

// Weather picks one of fog, haze or sun glare uniformly.
func Weather(img image.Image, rng Rand) (image.Image, string) {
	b := img.Bounds()
	switch rng.Intn(3) {
	case 0:
		alpha := geometry.Uniform(rng, 0.2, 0.4)
		layer := imaging.New(b.Dx(), b.Dy(), color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		return blend.Opacity(img, layer, alpha), "weather:fog"
	case 1:
		level := uint8(180 + rng.Intn(41))
		alpha := geometry.Uniform(rng, 0.15, 0.35)
		layer := imaging.New(b.Dx(), b.Dy(), color.NRGBA{R: level, G: level, B: level, A: 255})
		return blend.Opacity(img, layer, alpha), "weather:haze"
	default:
		factor := geometry.Uniform(rng, 1.2, 1.5)
		return adjust.Brightness(img, factor-1), "weather:glare"
	}
}

// GaussianBlur blurs with a radius in [0.5,2.0].
func GaussianBlur(img image.Image, rng Rand) (image.Image, string) {
	radius := geometry.Uniform(rng, 0.5, 2.0)
	return blur.Gaussian(img, radius), "blur"
}

const (
	edgeLowThreshold  = 50
	edgeHighThreshold = 150
	edgeOpacity       = 0.1
)

// EdgeEmphasis blends a Canny edge map back over the image at 10% opacity.
// It draws no random values.
func EdgeEmphasis(img image.Image, _ Rand) (image.Image, string) {
	edges := Canny(img, edgeLowThreshold, edgeHighThreshold)
	return blend.Opacity(img, edges, edgeOpacity), "edges"
}
