package domain

import (
	"fmt"
	"strconv"
)

// radiusPerMagnitude is the marker radius, in meters, per unit of magnitude.
const radiusPerMagnitude = 10000.0

// tierColors are the stroke and fill colors drawn for each tier.
var tierColors = map[Tier]string{
	TierHigh:   "red",
	TierMedium: "orange",
	TierLow:    "yellow",
}

// Marker describes one event circle to draw.
type Marker struct {
	City      string  `json:"city"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Magnitude float64 `json:"magnitude"`
	Depth     float64 `json:"depth"`
	Date      string  `json:"date"`
	Time      string  `json:"time"`
	Tier      Tier    `json:"tier"`
	Color     string  `json:"color"`
	Radius    float64 `json:"radius"`
	Popup     string  `json:"popup"`
	Alert     bool    `json:"alert"`
}

// RenderPlan is the ordered list of markers derived from a collection.
type RenderPlan struct {
	Markers []Marker `json:"markers"`
}

// Alerts returns the number of markers that raise an alert.
func (p RenderPlan) Alerts() int {
	n := 0
	for _, m := range p.Markers {
		if m.Alert {
			n++
		}
	}
	return n
}

// AlertMarkers returns the markers that raise an alert, in plan order.
func (p RenderPlan) AlertMarkers() []Marker {
	var out []Marker
	for _, m := range p.Markers {
		if m.Alert {
			out = append(out, m)
		}
	}
	return out
}

// PlanFor filters collection by criteria and plans the result.
func PlanFor(collection EventCollection, criteria FilterCriteria) RenderPlan {
	return BuildPlan(Apply(collection, criteria))
}

// BuildPlan converts a collection into markers. Cities are visited in sorted
// order and events in their stored order; records without at least two
// coordinates are skipped.
func BuildPlan(collection EventCollection) RenderPlan {
	plan := RenderPlan{Markers: make([]Marker, 0, collection.Len())}

	for _, city := range collection.Cities() {
		for _, event := range collection[city] {
			if !event.Renderable() {
				continue
			}
			plan.Markers = append(plan.Markers, newMarker(city, event))
		}
	}

	return plan
}

func newMarker(groupKey string, event EventRecord) Marker {
	pos := event.Position()
	tier := ClassifyTier(event.Magnitude)
	label := event.Label(groupKey)

	return Marker{
		City:      label,
		Lat:       pos.Lat,
		Lon:       pos.Lon,
		Magnitude: event.Magnitude,
		Depth:     event.Depth,
		Date:      event.Date,
		Time:      event.Time,
		Tier:      tier,
		Color:     tierColors[tier],
		Radius:    MarkerRadius(event.Magnitude),
		Popup:     popupText(label, event),
		Alert:     tier == TierHigh,
	}
}

// MarkerRadius maps a magnitude to a circle radius in meters. It is strictly
// increasing and positive for finite magnitudes: linear (magnitude * 10 km)
// from magnitude 1 upward, and radiusPerMagnitude / (2 - magnitude) below 1,
// which meets the linear part at 1 and only approaches zero.
func MarkerRadius(magnitude float64) float64 {
	if magnitude >= 1 {
		return magnitude * radiusPerMagnitude
	}
	return radiusPerMagnitude / (2 - magnitude)
}

func popupText(label string, event EventRecord) string {
	return fmt.Sprintf("%s\nMagnitude: %s\nDate: %s\nTime: %s\nDepth: %s km",
		label,
		formatNumber(event.Magnitude),
		event.Date,
		event.Time,
		formatNumber(event.Depth),
	)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
