// Package pipeline wires user controls to the fetch, filter and render steps.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/couchcryptid/quake-map-service/internal/domain"
	"github.com/couchcryptid/quake-map-service/internal/locate"
	"github.com/couchcryptid/quake-map-service/internal/observability"
	"github.com/couchcryptid/quake-map-service/internal/render"
	"github.com/couchcryptid/quake-map-service/internal/session"
)

// ErrSuperseded is returned when a newer request replaced this one before its
// data arrived. Nothing was drawn.
var ErrSuperseded = errors.New("request superseded by a newer one")

// Fetcher retrieves the event collection for a data source. It never fails;
// an unreachable source yields an empty collection.
type Fetcher interface {
	Fetch(ctx context.Context, mode domain.Mode) domain.EventCollection
}

// Renderer draws a plan if ok still holds when it gets the render lock.
type Renderer interface {
	ExecuteIf(plan domain.RenderPlan, ok func() bool) (render.Result, bool)
}

// LocationShower centers the map on the user.
type LocationShower interface {
	ShowUserLocation(ctx context.Context, locator locate.Locator) (domain.Coordinate, error)
}

// AlertPublisher forwards high-tier markers to an external sink.
type AlertPublisher interface {
	PublishAlerts(ctx context.Context, mode domain.Mode, markers []domain.Marker) error
}

// Pipeline handles the map's user controls.
type Pipeline struct {
	session   *session.Session
	fetcher   Fetcher
	renderer  Renderer
	location  LocationShower
	publisher AlertPublisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
}

// New creates a Pipeline. publisher may be nil.
func New(s *session.Session, f Fetcher, r Renderer, l LocationShower, publisher AlertPublisher, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		session:   s,
		fetcher:   f,
		renderer:  r,
		location:  l,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once a render pass has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("map has not been rendered yet")
	}
	return nil
}

// Session exposes the session the pipeline mutates.
func (p *Pipeline) Session() *session.Session {
	return p.session
}

// State is the user-visible control state.
type State struct {
	Source          string `json:"source"`
	FilterPanelOpen bool   `json:"filter_panel_open"`
	Location        string `json:"location,omitempty"`
	Magnitude       string `json:"magnitude"`
}

// State reports the active source, panel and filter.
func (p *Pipeline) State() State {
	criteria := p.session.Criteria()
	return State{
		Source:          p.session.Current().String(),
		FilterPanelOpen: p.session.FilterPanelOpen(),
		Location:        criteria.Location,
		Magnitude:       criteria.Band.String(),
	}
}

// ShowEvents draws every event from the active source.
func (p *Pipeline) ShowEvents(ctx context.Context) (render.Result, error) {
	return p.render(ctx, domain.FilterCriteria{})
}

// ToggleSource switches to the other data source and redraws it unfiltered.
func (p *Pipeline) ToggleSource(ctx context.Context) (domain.Mode, render.Result, error) {
	mode := p.session.Toggle()
	p.session.SetCriteria(domain.FilterCriteria{})
	p.logger.Info("data source toggled", "source", mode.String())
	res, err := p.ShowEvents(ctx)
	return mode, res, err
}

// ToggleFilterPanel flips the filter panel and returns whether it is open.
func (p *Pipeline) ToggleFilterPanel() bool {
	return p.session.ToggleFilterPanel()
}

// ApplyFilter redraws the active source restricted to criteria, then closes
// the filter panel. Once drawn, the criteria are kept for later refreshes.
func (p *Pipeline) ApplyFilter(ctx context.Context, criteria domain.FilterCriteria) (render.Result, error) {
	res, err := p.render(ctx, criteria)
	if err != nil {
		return res, err
	}
	p.session.SetCriteria(criteria)
	p.session.SetFilterPanel(false)
	return res, nil
}

// ResetFilter clears the filter, redraws everything and closes the panel.
func (p *Pipeline) ResetFilter(ctx context.Context) (render.Result, error) {
	res, err := p.ShowEvents(ctx)
	if err != nil {
		return res, err
	}
	p.session.SetCriteria(domain.FilterCriteria{})
	p.session.SetFilterPanel(false)
	return res, nil
}

// Refresh redraws the active source with the last applied filter.
func (p *Pipeline) Refresh(ctx context.Context) (render.Result, error) {
	return p.render(ctx, p.session.Criteria())
}

// Locate shows the user's position using locator.
func (p *Pipeline) Locate(ctx context.Context, locator locate.Locator) (domain.Coordinate, error) {
	return p.location.ShowUserLocation(ctx, locator)
}

func (p *Pipeline) render(ctx context.Context, criteria domain.FilterCriteria) (render.Result, error) {
	reqCtx, gen := p.session.Begin(ctx)
	mode := p.session.Current()

	collection := p.fetcher.Fetch(reqCtx, mode)
	if err := ctx.Err(); err != nil {
		return render.Result{}, fmt.Errorf("render %s: %w", mode, err)
	}

	plan := domain.PlanFor(collection, criteria)
	res, drawn := p.renderer.ExecuteIf(plan, func() bool { return p.session.IsCurrent(gen) })
	if !drawn {
		p.metrics.StaleRenders.Inc()
		p.logger.Debug("discarding superseded render", "source", mode.String(), "generation", gen)
		return render.Result{}, ErrSuperseded
	}
	p.ready.Store(true)

	p.logger.Info("map rendered",
		"source", mode.String(),
		"markers", res.Drawn,
		"alerts", res.Alerts,
		"filtered", !criteria.IsZero(),
	)
	p.publish(ctx, mode, plan.AlertMarkers())
	return res, nil
}

func (p *Pipeline) publish(ctx context.Context, mode domain.Mode, markers []domain.Marker) {
	if p.publisher == nil || len(markers) == 0 {
		return
	}
	if err := p.publisher.PublishAlerts(ctx, mode, markers); err != nil {
		p.metrics.AlertsPublished.WithLabelValues("error").Inc()
		p.logger.Error("publish alerts failed", "error", err, "count", len(markers))
		return
	}
	p.metrics.AlertsPublished.WithLabelValues("success").Add(float64(len(markers)))
}
