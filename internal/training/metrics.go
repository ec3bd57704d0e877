package training

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"droneaid/internal/command"
	"droneaid/internal/logger"
)

const (
	DeviceCUDA = "cuda"
	DeviceCPU  = "cpu"
)

// Metrics are the validation scores of a trained model.
type Metrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	MAP50     float64 `json:"map50"`
	MAP50_95  float64 `json:"map50_95"`
}

var ErrNoMetrics = errors.New("no metrics found")

// DetectDevice reports "cuda" when nvidia-smi lists a GPU and "cpu" otherwise.
func DetectDevice(ctx context.Context, runner command.Runner, log *logger.Logger) string {
	out, err := runner.Run(ctx, "nvidia-smi", "-L")
	if err != nil || !bytes.Contains(out, []byte("GPU")) {
		return DeviceCPU
	}
	if log != nil {
		first, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
		log.Info("CUDA device available: %s", first)
	}
	return DeviceCUDA
}

// ParseValOutput pulls the overall row out of the validator's table:
//
//	Class  Images  Instances  Box(P  R  mAP50  mAP50-95)
//	  all     150        150  0.91  0.88  0.93  0.71
func ParseValOutput(out []byte) (*Metrics, error) {
	var found *Metrics
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 || fields[0] != "all" {
			continue
		}
		values := make([]float64, 0, 4)
		for _, f := range fields[len(fields)-4:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				break
			}
			values = append(values, v)
		}
		if len(values) == 4 {
			found = &Metrics{Precision: values[0], Recall: values[1], MAP50: values[2], MAP50_95: values[3]}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrNoMetrics
	}
	return found, nil
}

// ReadResultsCSV reads the last epoch of the trainer's results.csv.
func ReadResultsCSV(path string) (*Metrics, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	if len(rows) < 2 {
		return nil, ErrNoMetrics
	}

	columns := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		columns[strings.TrimSpace(name)] = i
	}
	last := rows[len(rows)-1]

	var m Metrics
	targets := []struct {
		name string
		dst  *float64
	}{
		{"metrics/precision(B)", &m.Precision},
		{"metrics/recall(B)", &m.Recall},
		{"metrics/mAP50(B)", &m.MAP50},
		{"metrics/mAP50-95(B)", &m.MAP50_95},
	}
	for _, t := range targets {
		i, ok := columns[t.name]
		if !ok || i >= len(last) {
			return nil, fmt.Errorf("results missing column %s: %w", t.name, ErrNoMetrics)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(last[i]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value %q: %w", t.name, last[i], err)
		}
		*t.dst = v
	}
	return &m, nil
}
