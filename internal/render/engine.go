// Package render draws render plans onto a map surface.
package render

import (
	"log/slog"
	"sync"

	"github.com/couchcryptid/quake-map-service/internal/domain"
	"github.com/couchcryptid/quake-map-service/internal/observability"
)

// Alerter fires a transient alert.
type Alerter interface {
	Fire()
}

// Result summarizes one executed plan.
type Result struct {
	Removed int `json:"removed"`
	Drawn   int `json:"drawn"`
	Alerts  int `json:"alerts"`
}

// Engine executes render plans against a surface. Each execution replaces
// every event layer and leaves other layers alone.
type Engine struct {
	surface Surface
	alerter Alerter
	logger  *slog.Logger
	metrics *observability.Metrics

	mu sync.Mutex
}

// NewEngine creates an Engine drawing onto surface and firing alerter for
// each high-tier marker.
func NewEngine(surface Surface, alerter Alerter, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{
		surface: surface,
		alerter: alerter,
		logger:  logger,
		metrics: metrics,
	}
}

// Execute clears all event layers and draws plan.
func (e *Engine) Execute(plan domain.RenderPlan) Result {
	res, _ := e.ExecuteIf(plan, nil)
	return res
}

// ExecuteIf runs Execute only when ok (checked under the engine lock) returns
// true. A nil ok always executes. The second return reports whether the plan
// was drawn.
func (e *Engine) ExecuteIf(plan domain.RenderPlan, ok func() bool) (Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ok != nil && !ok() {
		return Result{}, false
	}
	return e.execute(plan), true
}

func (e *Engine) execute(plan domain.RenderPlan) Result {
	res := Result{Removed: RemoveKind(e.surface, KindEvent)}

	for _, m := range plan.Markers {
		e.surface.Add(markerLayer(m))
		res.Drawn++
	}

	for _, m := range plan.Markers {
		if m.Alert {
			e.alerter.Fire()
			res.Alerts++
		}
	}

	e.metrics.RendersTotal.Inc()
	e.metrics.MarkersRendered.Set(float64(res.Drawn))
	e.logger.Debug("render complete", "removed", res.Removed, "drawn", res.Drawn, "alerts", res.Alerts)
	return res
}

func markerLayer(m domain.Marker) Layer {
	return Layer{
		Kind:   KindEvent,
		Shape:  ShapeCircle,
		Lat:    m.Lat,
		Lon:    m.Lon,
		Radius: m.Radius,
		Color:  m.Color,
		Popup:  m.Popup,
		Alert:  m.Alert,
	}
}
