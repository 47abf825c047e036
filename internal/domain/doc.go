// Package domain models seismic event data and the pure parts of the
// visualization pipeline: filtering and render planning.
//
// # Data Source
//
// Events come from an upstream HTTP API with two read-only endpoints, one for
// the live feed and one for a stored snapshot. Both answer with:
//
//	{"data": {"<city>": [{"Date": "...", "Time": "...", "Depth": 10,
//	                      "Magnitude": 6.5, "Coordinates": [27.1, 38.4],
//	                      "CityName": "Izmir"}]}}
//
// A missing or null "data" field is an empty collection.
//
// # Coordinate Order
//
// Coordinates are stored GeoJSON-style as [longitude, latitude]. Map surfaces
// take (latitude, longitude), so [EventRecord.Position] swaps them. Records
// with fewer than two coordinate values cannot be placed and are skipped by
// [BuildPlan] without error.
//
// # Severity
//
// Magnitude maps onto three tiers with boundaries at 4 and 6:
//
//	low:    m < 4
//	medium: 4 <= m < 6
//	high:   m >= 6
//
// The filter bands reuse [ClassifyTier], so a band and the tier drawn on the
// map can never disagree. High-tier markers raise an alert when rendered.
package domain
