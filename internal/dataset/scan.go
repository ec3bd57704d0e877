package dataset

import (
	"bufio"
	"fmt"
	"image"
	_ "image/jpeg"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"droneaid/internal/model"
)

// ScanResult is what Scan found in an existing dataset tree.
type ScanResult struct {
	Samples []model.Sample
	Skipped []string
}

// Scan walks labels/<split>/ under root and rebuilds catalog records from
// each label file and its image. Files that do not follow the
// <class>_<index>.txt naming or whose label does not parse are skipped.
func Scan(root string, classes []string) (*ScanResult, error) {
	result := &ScanResult{}

	for _, split := range []string{SplitTrain, SplitVal} {
		labelDir := filepath.Join(root, "labels", split)
		entries, err := os.ReadDir(labelDir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", labelDir, err)
		}

		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != ".txt" {
				continue
			}
			sample, err := scanSample(root, split, e.Name(), classes)
			if err != nil {
				result.Skipped = append(result.Skipped, fmt.Sprintf("%s/%s: %v", split, e.Name(), err))
				continue
			}
			result.Samples = append(result.Samples, *sample)
		}
	}

	return result, nil
}

func scanSample(root, split, labelName string, classes []string) (*model.Sample, error) {
	stem := strings.TrimSuffix(labelName, ".txt")
	sep := strings.LastIndex(stem, "_")
	if sep <= 0 {
		return nil, fmt.Errorf("unexpected file name")
	}
	class := stem[:sep]
	if _, err := strconv.Atoi(stem[sep+1:]); err != nil {
		return nil, fmt.Errorf("unexpected sample index %q", stem[sep+1:])
	}

	f, err := os.Open(filepath.Join(root, "labels", split, labelName))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return nil, fmt.Errorf("empty label")
	}
	label, err := ParseLabel(scanner.Text())
	if err != nil {
		return nil, err
	}
	if idx := ClassIndex(classes, class); idx >= 0 && idx != label.ClassIndex {
		return nil, fmt.Errorf("class %s has index %d, label says %d", class, idx, label.ClassIndex)
	}

	imageRel := filepath.ToSlash(filepath.Join("images", split, stem+".jpg"))
	sample := &model.Sample{
		Filename:   imageRel,
		Class:      class,
		ClassIndex: label.ClassIndex,
		Split:      split,
		CenterX:    label.Box.CenterX,
		CenterY:    label.Box.CenterY,
		Width:      label.Box.Width,
		Height:     label.Box.Height,
	}

	img, err := os.Open(filepath.Join(root, filepath.FromSlash(imageRel)))
	if err != nil {
		return nil, fmt.Errorf("missing image: %w", err)
	}
	defer img.Close()
	cfg, _, err := image.DecodeConfig(img)
	if err != nil {
		return nil, fmt.Errorf("unreadable image: %w", err)
	}
	sample.CanvasWidth = cfg.Width
	sample.CanvasHeight = cfg.Height

	if info, err := img.Stat(); err == nil {
		sample.CreatedAt = info.ModTime()
	}
	return sample, nil
}
