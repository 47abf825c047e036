package domain

import (
	"fmt"
	"sort"
	"strings"
)

// EventRecord is one seismic event as delivered by the data provider.
// Date and Time are display-only and never parsed.
type EventRecord struct {
	Date        string    `json:"Date"`
	Time        string    `json:"Time"`
	Depth       float64   `json:"Depth"`       // km
	Magnitude   float64   `json:"Magnitude"`   // typically 0-10
	Coordinates []float64 `json:"Coordinates"` // [lon, lat]
	CityName    string    `json:"CityName,omitempty"`
}

// Renderable reports whether the record carries enough coordinates to be placed on a map.
func (r EventRecord) Renderable() bool {
	return len(r.Coordinates) >= 2
}

// Position converts the stored [lon, lat] pair into a Coordinate.
// Callers must check Renderable first.
func (r EventRecord) Position() Coordinate {
	return Coordinate{Lat: r.Coordinates[1], Lon: r.Coordinates[0]}
}

// Label returns the record's own city name, falling back to the group key it was filed under.
func (r EventRecord) Label(groupKey string) string {
	if r.CityName != "" {
		return r.CityName
	}
	return groupKey
}

// EventCollection maps a city name to its events. Order within a city is preserved.
type EventCollection map[string][]EventRecord

// Cities returns the collection's keys in sorted order.
func (c EventCollection) Cities() []string {
	cities := make([]string, 0, len(c))
	for city := range c {
		cities = append(cities, city)
	}
	sort.Strings(cities)
	return cities
}

// Len returns the total number of events across all cities.
func (c EventCollection) Len() int {
	n := 0
	for _, events := range c {
		n += len(events)
	}
	return n
}

// Coordinate is a WGS-84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Mode selects which upstream data source feeds the map.
type Mode int

const (
	Live Mode = iota
	Stored
)

func (m Mode) String() string {
	switch m {
	case Live:
		return "live"
	case Stored:
		return "stored"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Other returns the opposite mode.
func (m Mode) Other() Mode {
	if m == Live {
		return Stored
	}
	return Live
}

// ParseMode accepts "live" or "stored" in any case.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "live":
		return Live, nil
	case "stored":
		return Stored, nil
	default:
		return Live, fmt.Errorf("unknown data source %q", s)
	}
}
