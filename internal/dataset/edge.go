package dataset

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Canny returns a binary edge map (255 = edge) of img.
//
// The image is converted to BT.601 luminance without pre-smoothing,
// differentiated with 3x3 Sobel kernels, thinned by non-maximum suppression
// and finally thresholded with hysteresis: gradients at or above high are
// edges, gradients at or above low are kept only when connected to an edge.
// The gradient magnitude is the L1 norm |gx|+|gy|, the same scale OpenCV's
// Canny applies its thresholds to.
func Canny(img image.Image, low, high float64) *image.Gray {
	gray := imaging.Grayscale(img)
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w < 3 || h < 3 {
		return out
	}

	lum := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			lum[y*w+x] = float64(gray.Pix[y*gray.Stride+x*4])
		}
	}

	at := func(x, y int) float64 {
		x = clampInt(x, 0, w-1)
		y = clampInt(y, 0, h-1)
		return lum[y*w+x]
	}

	magnitude := make([]float64, w*h)
	direction := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gx := -at(x-1, y-1) + at(x+1, y-1) -
				2*at(x-1, y) + 2*at(x+1, y) -
				at(x-1, y+1) + at(x+1, y+1)
			gy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) +
				at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)
			magnitude[y*w+x] = math.Abs(gx) + math.Abs(gy)
			direction[y*w+x] = math.Atan2(gy, gx)
		}
	}

	thin := make([]float64, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			n1, n2 := neighbours(magnitude, w, x, y, direction[i])
			if magnitude[i] >= n1 && magnitude[i] >= n2 {
				thin[i] = magnitude[i]
			}
		}
	}

	// Hysteresis: grow strong edges through weak pixels.
	stack := make([]int, 0, 1024)
	for i, v := range thin {
		if v >= high {
			out.Pix[i] = 255
			stack = append(stack, i)
		}
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if out.Pix[j] == 0 && thin[j] >= low {
					out.Pix[j] = 255
					stack = append(stack, j)
				}
			}
		}
	}

	return out
}

// neighbours returns the two magnitudes along the gradient direction,
// quantised to 0, 45, 90 or 135 degrees.
func neighbours(mag []float64, w, x, y int, angle float64) (float64, float64) {
	deg := angle * 180 / math.Pi
	if deg < 0 {
		deg += 180
	}
	switch {
	case deg < 22.5 || deg >= 157.5:
		return mag[y*w+x-1], mag[y*w+x+1]
	case deg < 67.5:
		return mag[(y-1)*w+x-1], mag[(y+1)*w+x+1]
	case deg < 112.5:
		return mag[(y-1)*w+x], mag[(y+1)*w+x]
	default:
		return mag[(y-1)*w+x+1], mag[(y+1)*w+x-1]
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
