package domain

import (
	"context"
	"strings"
)

// GeocodeResult is the location resolved for one address.
type GeocodeResult struct {
	Lat    float64
	Lon    float64
	City   string
	Region string
	Query  string // the query variant that matched
}

// Point returns the result's coordinates.
func (r GeocodeResult) Point() Point {
	return Point{Lat: r.Lat, Lon: r.Lon}
}

// Lookup is a single forward-geocoding request against an external provider.
type Lookup interface {
	// Search returns the best match for query. ok is false when the provider
	// returned no results; err is set only for transport or protocol failures.
	Search(ctx context.Context, query string) (result GeocodeResult, ok bool, err error)
}

var stateAbbreviations = map[string]string{
	"minnesota":    "MN",
	"wisconsin":    "WI",
	"iowa":         "IA",
	"north dakota": "ND",
	"south dakota": "SD",
}

// RegionAbbreviation converts a provider state name to its two-letter code.
// Unknown names fall back to their first two letters, upper-cased.
func RegionAbbreviation(state string) string {
	state = strings.TrimSpace(state)
	if state == "" {
		return ""
	}
	if abbr, ok := stateAbbreviations[strings.ToLower(state)]; ok {
		return abbr
	}
	if r := []rune(state); len(r) > 2 {
		state = string(r[:2])
	}
	return strings.ToUpper(state)
}
