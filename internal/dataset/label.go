package dataset

import (
	"fmt"
	"strconv"
	"strings"

	"droneaid/internal/geometry"
)

// Label is one YOLO annotation line: class index plus normalized box.
type Label struct {
	ClassIndex int
	Box        geometry.BBox
}

// String formats the label as "class cx cy w h" with six decimals.
func (l Label) String() string {
	return fmt.Sprintf("%d %.6f %.6f %.6f %.6f",
		l.ClassIndex, l.Box.CenterX, l.Box.CenterY, l.Box.Width, l.Box.Height)
}

// ParseLabel parses a single label line.
func ParseLabel(line string) (Label, error) {
	fields := strings.Fields(line)
	if len(fields) != 5 {
		return Label{}, fmt.Errorf("label must have 5 fields, got %d", len(fields))
	}

	classIndex, err := strconv.Atoi(fields[0])
	if err != nil {
		return Label{}, fmt.Errorf("invalid class index %q: %w", fields[0], err)
	}

	var values [4]float64
	for i := range values {
		values[i], err = strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return Label{}, fmt.Errorf("invalid coordinate %q: %w", fields[i+1], err)
		}
	}

	return Label{
		ClassIndex: classIndex,
		Box: geometry.BBox{
			CenterX: values[0],
			CenterY: values[1],
			Width:   values[2],
			Height:  values[3],
		},
	}, nil
}
