package importer

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Sighting is one entry of an aggregated feed export.
type Sighting struct {
	Type         string `yaml:"type"`
	Address      string `yaml:"address"`
	TimeOccurred string `yaml:"time_occurred"`
	State        string `yaml:"state"`
	Confirmed    bool   `yaml:"confirmed"`
}

// File is a sightings export.
type File struct {
	Source    string     `yaml:"source"`
	Sightings []Sighting `yaml:"sightings"`
}

// Decode parses a sightings YAML document. Unknown keys are rejected so
// typos in hand-edited exports surface early.
func Decode(r io.Reader) (File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("decode sightings: %w", err)
	}
	return f, nil
}

// ReadFile decodes the sightings file at path.
func ReadFile(path string) (File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return File{}, err
	}
	defer fh.Close()
	return Decode(fh)
}

var clockRe = regexp.MustCompile(`(?i)^\s*(\d{1,2}):(\d{2})\s*(AM|PM)\s*$`)

// ClockOn places a "h:mm AM/PM" time of day on day's date, in day's location.
func ClockOn(s string, day time.Time) (time.Time, bool) {
	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour < 1 || hour > 12 || minute > 59 {
		return time.Time{}, false
	}
	pm := strings.EqualFold(m[3], "PM")
	switch {
	case pm && hour != 12:
		hour += 12
	case !pm && hour == 12:
		hour = 0
	}
	y, mo, d := day.Date()
	return time.Date(y, mo, d, hour, minute, 0, 0, day.Location()), true
}
