package domain

import (
	"fmt"
	"math"
)

// EarthRadiusMiles is the mean Earth radius used for great-circle distances.
const EarthRadiusMiles = 3959.0

// Point is a WGS-84 latitude/longitude coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the point lies within latitude [-90,90] and longitude [-180,180].
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// IsZero reports whether both coordinates are unset.
func (p Point) IsZero() bool {
	return p.Lat == 0 && p.Lon == 0
}

func (p Point) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lon)
}

// Distance returns the great-circle distance between a and b in miles.
func Distance(a, b Point) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLon := toRadians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// Rounding can push h a hair outside [0,1] for antipodal or identical points.
	h = math.Min(1, math.Max(0, h))

	return 2 * EarthRadiusMiles * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Bounds is a latitude/longitude bounding box.
type Bounds struct {
	North float64 `yaml:"north"`
	South float64 `yaml:"south"`
	East  float64 `yaml:"east"`
	West  float64 `yaml:"west"`
}

// MinneapolisMetro roughly covers the Twin Cities metro area.
var MinneapolisMetro = Bounds{
	North: 45.25,  // north of St. Paul
	South: 44.65,  // south of Burnsville
	East:  -92.75, // east of Woodbury
	West:  -93.70, // west of Eden Prairie
}

// Contains reports whether p falls inside the box, edges inclusive.
func (b Bounds) Contains(p Point) bool {
	return p.Lat >= b.South && p.Lat <= b.North && p.Lon >= b.West && p.Lon <= b.East
}
