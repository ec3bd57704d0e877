package model

import "time"

// Tile is a catalog record of one harvested, geotagged satellite image.
type Tile struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	CenterLat float64   `json:"center_lat"`
	CenterLon float64   `json:"center_lon"`
	MinLon    float64   `json:"min_lon"`
	MinLat    float64   `json:"min_lat"`
	MaxLon    float64   `json:"max_lon"`
	MaxLat    float64   `json:"max_lat"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	FetchedAt time.Time `json:"fetched_at"`
}
