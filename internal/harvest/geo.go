package harvest

import (
	"fmt"
	"math"

	"droneaid/internal/geometry"
)

const metersPerDegree = 111320.0

// Region is a lon/lat rectangle tile centers are drawn from.
type Region struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

// PuertoRico covers the main island.
var PuertoRico = Region{MinLon: -67.95, MinLat: 17.88, MaxLon: -65.22, MaxLat: 18.52}

// RandomCenter draws a uniform point inside r, longitude first.
func (r Region) RandomCenter(rng geometry.Rand) (lat, lon float64) {
	lon = geometry.Uniform(rng, r.MinLon, r.MaxLon)
	lat = geometry.Uniform(rng, r.MinLat, r.MaxLat)
	return lat, lon
}

// BBox is a WGS-84 bounding box in WMS 1.1.1 axis order.
type BBox struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

// BBoxAround returns the square of sizeM meters centered on lat/lon.
func BBoxAround(lat, lon, sizeM float64) BBox {
	half := sizeM / 2
	dLat := half / metersPerDegree
	dLon := half / (metersPerDegree * math.Cos(lat*math.Pi/180))
	return BBox{
		MinLon: lon - dLon,
		MinLat: lat - dLat,
		MaxLon: lon + dLon,
		MaxLat: lat + dLat,
	}
}

// String formats the box as the WMS BBOX parameter.
func (b BBox) String() string {
	return fmt.Sprintf("%.8f,%.8f,%.8f,%.8f", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}

// TileName is the file name of the n-th tile (1-based) centered on lat/lon.
func TileName(n int, lat, lon float64) string {
	return fmt.Sprintf("PR_S2_%02d_%.5f_%.5f.jpg", n, lat, lon)
}

// ExiftoolArgs writes the GPS position and datum into path in place.
func ExiftoolArgs(path string, lat, lon float64) []string {
	latRef, lonRef := "N", "E"
	if lat < 0 {
		latRef = "S"
	}
	if lon < 0 {
		lonRef = "W"
	}
	return []string{
		"-overwrite_original",
		fmt.Sprintf("-GPSLatitude=%v", math.Abs(lat)),
		"-GPSLatitudeRef=" + latRef,
		fmt.Sprintf("-GPSLongitude=%v", math.Abs(lon)),
		"-GPSLongitudeRef=" + lonRef,
		"-GPSMapDatum=WGS-84",
		path,
	}
}
