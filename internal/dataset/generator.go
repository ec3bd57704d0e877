package dataset

import (
	"image"

	"droneaid/internal/geometry"

	"github.com/disintegration/imaging"
)

// Sample is one synthesized training image with its annotation.
type Sample struct {
	Class      string
	ClassIndex int
	Index      int
	Split      string
	Image      image.Image
	Label      Label
	Background BackgroundKind
	Effects    []string
}

// Generator composites icons onto synthetic backgrounds.
type Generator struct {
	Mode  string
	icon  Pipeline
	scene Pipeline
}

// NewGenerator returns a generator for the given effects mode. Unknown modes
// fall back to enhanced.
func NewGenerator(mode string) *Generator {
	if mode != EffectsBasic {
		mode = EffectsEnhanced
	}
	return &Generator{
		Mode:  mode,
		icon:  IconPipeline(mode),
		scene: ScenePipeline(mode),
	}
}

// Synthesize builds one sample. Random draws happen in a fixed order:
// canvas size, background, icon effects, scale and angle, position, scene
// effects. The label always describes the pasted footprint.
func (g *Generator) Synthesize(rng Rand, icon image.Image, classIndex int) Sample {
	size := RandomCanvasSize(rng)
	canvas, kind := Background(rng, size.X, size.Y)

	degraded, effects := g.icon.Run(icon, rng)

	transformed := geometry.RandomTransform(rng).Apply(degraded)
	tb := transformed.Bounds()
	footprint := geometry.Place(rng, tb.Dx(), tb.Dy(), size.X, size.Y)

	composite := imaging.Overlay(canvas, transformed, footprint.Point(), 1.0)

	final, sceneEffects := g.scene.Run(composite, rng)
	effects = append(effects, sceneEffects...)

	return Sample{
		ClassIndex: classIndex,
		Image:      final,
		Label: Label{
			ClassIndex: classIndex,
			Box:        footprint.Normalize(size.X, size.Y),
		},
		Background: kind,
		Effects:    effects,
	}
}
