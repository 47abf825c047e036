package render

import (
	"sort"
	"sync"
)

// Kind distinguishes event markers from other layers on the map.
type Kind string

const (
	KindEvent Kind = "event"
	KindSelf  Kind = "self"
)

// Shape is how a layer is drawn.
type Shape string

const (
	ShapeCircle Shape = "circle"
	ShapePoint  Shape = "point"
)

// Layer is one drawn map element.
type Layer struct {
	ID     int     `json:"id"`
	Kind   Kind    `json:"kind"`
	Shape  Shape   `json:"shape"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Radius float64 `json:"radius,omitempty"` // meters, circles only
	Color  string  `json:"color,omitempty"`
	Popup  string  `json:"popup,omitempty"`
	Alert  bool    `json:"alert,omitempty"`
}

// View is the map viewport.
type View struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Zoom int     `json:"zoom"`
}

// Surface is a map drawing surface.
type Surface interface {
	// Add draws a layer and returns its assigned ID.
	Add(layer Layer) int
	// Layers lists the drawn layers.
	Layers() []Layer
	// Remove deletes a layer by ID; unknown IDs are ignored.
	Remove(id int)
	// SetView moves the viewport.
	SetView(view View)
}

// Snapshot is the full visible state of a MemorySurface.
type Snapshot struct {
	View        View    `json:"view"`
	Layers      []Layer `json:"layers"`
	AlertActive bool    `json:"alert_active"`
}

// MemorySurface keeps map state in memory so clients can mirror it.
// It also serves as the alert indicator for the map container.
type MemorySurface struct {
	mu     sync.RWMutex
	nextID int
	layers map[int]Layer
	view   View
	alert  bool
}

// NewMemorySurface creates an empty surface with the given initial viewport.
func NewMemorySurface(initial View) *MemorySurface {
	return &MemorySurface{
		layers: make(map[int]Layer),
		view:   initial,
	}
}

func (s *MemorySurface) Add(layer Layer) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	layer.ID = s.nextID
	s.layers[layer.ID] = layer
	return layer.ID
}

func (s *MemorySurface) Layers() []Layer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLayers()
}

func (s *MemorySurface) Remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.layers, id)
}

func (s *MemorySurface) SetView(view View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = view
}

// SetAlert switches the map container's alert (shake) state.
func (s *MemorySurface) SetAlert(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alert = active
}

// Snapshot returns a consistent copy of the viewport, layers and alert state.
func (s *MemorySurface) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		View:        s.view,
		Layers:      s.sortedLayers(),
		AlertActive: s.alert,
	}
}

// sortedLayers must be called with s.mu held.
func (s *MemorySurface) sortedLayers() []Layer {
	out := make([]Layer, 0, len(s.layers))
	for _, l := range s.layers {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RemoveKind deletes every layer of the given kind from surface and returns
// how many were removed.
func RemoveKind(surface Surface, kind Kind) int {
	removed := 0
	for _, l := range surface.Layers() {
		if l.Kind == kind {
			surface.Remove(l.ID)
			removed++
		}
	}
	return removed
}
