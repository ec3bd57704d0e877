package model

import "time"

// Sample is a catalog record of one generated training image.
type Sample struct {
	ID           int64     `json:"id"`
	Filename     string    `json:"filename"`
	Class        string    `json:"class"`
	ClassIndex   int       `json:"class_index"`
	Split        string    `json:"split"`
	CenterX      float64   `json:"center_x"`
	CenterY      float64   `json:"center_y"`
	Width        float64   `json:"width"`
	Height       float64   `json:"height"`
	CanvasWidth  int       `json:"canvas_width"`
	CanvasHeight int       `json:"canvas_height"`
	Background   string    `json:"background"`
	Effects      string    `json:"effects"`
	CreatedAt    time.Time `json:"created_at"`
}

// SplitCount is the number of samples of one class in one split.
type SplitCount struct {
	Class string `json:"class"`
	Split string `json:"split"`
	Count int    `json:"count"`
}
