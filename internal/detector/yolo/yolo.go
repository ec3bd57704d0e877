// Package yolo runs an exported YOLOv8 ONNX model with OpenCV DNN.
package yolo

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"droneaid/internal/detector"

	"gocv.io/x/gocv"
)

const (
	InputSize    = 640
	NMSThreshold = 0.45
)

// Model is a detector.Model backed by a gocv.Net. A gocv.Net is not safe
// for concurrent use, so Predict holds a mutex for the forward pass.
type Model struct {
	mu        sync.Mutex
	net       gocv.Net
	inputSize int
}

// Load reads an ONNX model. It satisfies detector.Loader.
func Load(path string) (detector.Model, error) {
	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", path)
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	return &Model{net: net, inputSize: InputSize}, nil
}

// Predict letterboxes img to the model input, runs one forward pass and
// returns boxes after non-maximum suppression in source image coordinates.
func (m *Model) Predict(img image.Image, confThreshold float64) ([]detector.Prediction, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %v", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("decoded image is empty")
	}

	lb := detector.NewLetterbox(mat.Cols(), mat.Rows(), m.inputSize)
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(mat, &resized, image.Pt(lb.Width, lb.Height), 0, 0, gocv.InterpolationLinear)
	padded := gocv.NewMat()
	defer padded.Close()
	fill := color.RGBA{R: detector.LetterboxFill, G: detector.LetterboxFill, B: detector.LetterboxFill}
	gocv.CopyMakeBorder(resized, &padded, lb.Top, lb.Bottom, lb.Left, lb.Right, gocv.BorderConstant, fill)

	blob := gocv.BlobFromImage(padded, 1.0/255.0, image.Pt(m.inputSize, m.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	m.mu.Lock()
	m.net.SetInput(blob, "")
	output := m.net.Forward("")
	m.mu.Unlock()
	defer output.Close()

	// Output is [1, 4+classes, anchors]; transpose to one anchor per row.
	dims := output.Size()
	if len(dims) != 3 || dims[1] <= 4 {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}
	rows := output.Reshape(1, dims[1])
	defer rows.Close()
	anchors := gocv.NewMat()
	defer anchors.Close()
	gocv.Transpose(rows, &anchors)

	numClasses := dims[1] - 4

	var (
		boxes   []image.Rectangle
		scores  []float32
		classes []int
		corners [][4]float64
	)
	for i := 0; i < anchors.Rows(); i++ {
		best, bestScore := 0, float32(0)
		for c := 0; c < numClasses; c++ {
			if s := anchors.GetFloatAt(i, 4+c); s > bestScore {
				best, bestScore = c, s
			}
		}
		if float64(bestScore) < confThreshold {
			continue
		}

		cx := float64(anchors.GetFloatAt(i, 0))
		cy := float64(anchors.GetFloatAt(i, 1))
		w := float64(anchors.GetFloatAt(i, 2))
		h := float64(anchors.GetFloatAt(i, 3))
		x1, y1 := lb.ToSource(cx-w/2, cy-h/2)
		x2, y2 := lb.ToSource(cx+w/2, cy+h/2)

		boxes = append(boxes, image.Rect(int(x1), int(y1), int(x2), int(y2)))
		scores = append(scores, bestScore)
		classes = append(classes, best)
		corners = append(corners, [4]float64{x1, y1, x2, y2})
	}
	if len(boxes) == 0 {
		return nil, nil
	}

	keep := gocv.NMSBoxes(boxes, scores, float32(confThreshold), NMSThreshold)

	predictions := make([]detector.Prediction, 0, len(keep))
	for _, idx := range keep {
		c := corners[idx]
		predictions = append(predictions, detector.Prediction{
			X1:         clamp(c[0], 0, float64(mat.Cols())),
			Y1:         clamp(c[1], 0, float64(mat.Rows())),
			X2:         clamp(c[2], 0, float64(mat.Cols())),
			Y2:         clamp(c[3], 0, float64(mat.Rows())),
			Confidence: float64(scores[idx]),
			ClassID:    classes[idx],
		})
	}
	return predictions, nil
}

// Close releases the network.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.net.Close()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
