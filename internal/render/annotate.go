// Package render draws detection boxes and labels onto images.
package render

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Box is one annotation: a pixel rectangle, its class and caption.
type Box struct {
	Class   string
	Caption string
	Rect    image.Rectangle
}

// SymbolColors match the colours of the icon artwork.
var SymbolColors = map[string]string{
	"children": "#cf8ffd",
	"elderly":  "#8c07ff",
	"firstaid": "#ffed10",
	"food":     "#e22b00",
	"ok":       "#00ce08",
	"shelter":  "#00cbb3",
	"sos":      "#ff6c00",
	"water":    "#418fde",
}

var fallback = color.NRGBA{R: 0, G: 255, B: 0, A: 255}

const strokeWidth = 2

// ColorFor returns the class colour, green for unknown classes.
func ColorFor(class string) color.NRGBA {
	hex, ok := SymbolColors[class]
	if !ok {
		return fallback
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return fallback
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

// textColor picks black or white, whichever reads better on bg.
func textColor(bg color.NRGBA) color.Color {
	c, _ := colorful.MakeColor(bg)
	_, _, l := c.Hsl()
	if l > 0.45 {
		return color.Black
	}
	return color.White
}

// Annotate returns a copy of img with every box outlined and captioned.
func Annotate(img image.Image, boxes []Box) *image.NRGBA {
	out := imaging.Clone(img)
	bounds := out.Bounds()
	face := basicfont.Face7x13

	for _, b := range boxes {
		c := ColorFor(b.Class)
		r := b.Rect.Intersect(bounds)
		if r.Empty() {
			continue
		}
		drawRect(out, r, c)

		if b.Caption == "" {
			continue
		}
		textW := font.MeasureString(face, b.Caption).Ceil()
		textH := face.Metrics().Height.Ceil()
		top := r.Min.Y - textH - 4
		if top < bounds.Min.Y {
			top = r.Min.Y
		}
		bg := image.Rect(r.Min.X, top, r.Min.X+textW+4, top+textH+4).Intersect(bounds)
		draw.Draw(out, bg, image.NewUniform(c), image.Point{}, draw.Src)

		d := &font.Drawer{
			Dst:  out,
			Src:  image.NewUniform(textColor(c)),
			Face: face,
			Dot:  fixed.P(r.Min.X+2, top+2+face.Metrics().Ascent.Ceil()),
		}
		d.DrawString(b.Caption)
	}
	return out
}

func drawRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	u := image.NewUniform(c)
	for s := 0; s < strokeWidth; s++ {
		edges := []image.Rectangle{
			image.Rect(r.Min.X, r.Min.Y+s, r.Max.X, r.Min.Y+s+1),
			image.Rect(r.Min.X, r.Max.Y-1-s, r.Max.X, r.Max.Y-s),
			image.Rect(r.Min.X+s, r.Min.Y, r.Min.X+s+1, r.Max.Y),
			image.Rect(r.Max.X-1-s, r.Min.Y, r.Max.X-s, r.Max.Y),
		}
		for _, e := range edges {
			draw.Draw(img, e.Intersect(r), u, image.Point{}, draw.Src)
		}
	}
}
