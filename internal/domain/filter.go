package domain

import (
	"fmt"
	"strings"
)

// Tier is the severity class of a magnitude.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

const (
	mediumThreshold = 4.0
	highThreshold   = 6.0
)

// ClassifyTier maps a magnitude to its severity tier.
func ClassifyTier(magnitude float64) Tier {
	switch {
	case magnitude >= highThreshold:
		return TierHigh
	case magnitude >= mediumThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

// MagnitudeBand is the magnitude constraint of a filter.
type MagnitudeBand int

const (
	BandAll MagnitudeBand = iota
	BandLow
	BandMedium
	BandHigh
)

func (b MagnitudeBand) String() string {
	switch b {
	case BandAll:
		return "all"
	case BandLow:
		return "low"
	case BandMedium:
		return "medium"
	case BandHigh:
		return "high"
	default:
		return fmt.Sprintf("band(%d)", int(b))
	}
}

// ParseBand accepts all, low, medium or high. An empty string means all.
func ParseBand(s string) (MagnitudeBand, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return BandAll, nil
	case "low":
		return BandLow, nil
	case "medium":
		return BandMedium, nil
	case "high":
		return BandHigh, nil
	default:
		return BandAll, fmt.Errorf("unknown magnitude band %q", s)
	}
}

// Contains reports whether the magnitude falls inside the band.
// Bands share their boundaries with ClassifyTier.
func (b MagnitudeBand) Contains(magnitude float64) bool {
	switch b {
	case BandAll:
		return true
	case BandLow:
		return ClassifyTier(magnitude) == TierLow
	case BandMedium:
		return ClassifyTier(magnitude) == TierMedium
	case BandHigh:
		return ClassifyTier(magnitude) == TierHigh
	default:
		return false
	}
}

// FilterCriteria narrows a collection by city name and magnitude band.
// The zero value matches everything.
type FilterCriteria struct {
	Location string
	Band     MagnitudeBand
}

// IsZero reports whether the criteria impose no constraint. Only the empty
// location is unconstrained; whitespace is part of the substring.
func (k FilterCriteria) IsZero() bool {
	return k.Location == "" && k.Band == BandAll
}

// Matches reports whether an event filed under city satisfies both predicates.
func (k FilterCriteria) Matches(city string, event EventRecord) bool {
	return k.matchesCity(strings.ToLower(city), strings.ToLower(k.Location)) &&
		k.Band.Contains(event.Magnitude)
}

func (k FilterCriteria) matchesCity(lowerCity, lowerNeedle string) bool {
	return lowerNeedle == "" || strings.Contains(lowerCity, lowerNeedle)
}

// Apply returns the subset of collection that satisfies criteria. Cities whose
// name does not contain the location substring (case-insensitive) are dropped,
// events outside the magnitude band are dropped, and cities left without
// events are omitted. The input is not modified.
func Apply(collection EventCollection, criteria FilterCriteria) EventCollection {
	needle := strings.ToLower(criteria.Location)
	out := make(EventCollection, len(collection))

	for city, events := range collection {
		if !criteria.matchesCity(strings.ToLower(city), needle) {
			continue
		}

		kept := make([]EventRecord, 0, len(events))
		for _, event := range events {
			if criteria.Band.Contains(event.Magnitude) {
				kept = append(kept, event)
			}
		}
		if len(kept) > 0 {
			out[city] = kept
		}
	}

	return out
}
