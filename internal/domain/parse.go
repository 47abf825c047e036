package domain

import (
	"encoding/json"
	"fmt"
)

// feedEnvelope is the response body of both upstream endpoints.
type feedEnvelope struct {
	Data EventCollection `json:"data"`
}

// ParseFeed decodes a provider response body into an EventCollection.
// A missing or null "data" field yields an empty, non-nil collection.
func ParseFeed(body []byte) (EventCollection, error) {
	var env feedEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return EventCollection{}, fmt.Errorf("parse feed: %w", err)
	}
	return normalizeCollection(env.Data), nil
}

// normalizeCollection drops cities with a null event list and guarantees a non-nil map.
func normalizeCollection(c EventCollection) EventCollection {
	out := make(EventCollection, len(c))
	for city, events := range c {
		if events == nil {
			continue
		}
		out[city] = events
	}
	return out
}
