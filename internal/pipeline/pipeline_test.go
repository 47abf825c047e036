package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/quake-map-service/internal/alert"
	"github.com/couchcryptid/quake-map-service/internal/domain"
	"github.com/couchcryptid/quake-map-service/internal/locate"
	"github.com/couchcryptid/quake-map-service/internal/observability"
	"github.com/couchcryptid/quake-map-service/internal/pipeline"
	"github.com/couchcryptid/quake-map-service/internal/render"
	"github.com/couchcryptid/quake-map-service/internal/session"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type stubFetcher struct {
	mu    sync.Mutex
	modes []domain.Mode
	fn    func(ctx context.Context, mode domain.Mode) domain.EventCollection
}

func (f *stubFetcher) Fetch(ctx context.Context, mode domain.Mode) domain.EventCollection {
	f.mu.Lock()
	f.modes = append(f.modes, mode)
	f.mu.Unlock()
	return f.fn(ctx, mode)
}

func (f *stubFetcher) calls() []domain.Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Mode(nil), f.modes...)
}

func returning(c domain.EventCollection) *stubFetcher {
	return &stubFetcher{fn: func(context.Context, domain.Mode) domain.EventCollection { return c }}
}

type recordingPublisher struct {
	mu      sync.Mutex
	markers []domain.Marker
	err     error
}

func (p *recordingPublisher) PublishAlerts(_ context.Context, _ domain.Mode, markers []domain.Marker) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.markers = append(p.markers, markers...)
	return p.err
}

// --- fixtures ---

type harness struct {
	pipeline *pipeline.Pipeline
	surface  *render.MemorySurface
	clock    *clockwork.FakeClock
}

var initialView = render.View{Lat: 39.9334, Lon: 32.8597, Zoom: 6}

func newHarness(f pipeline.Fetcher, publisher pipeline.AlertPublisher) *harness {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	clock := clockwork.NewFakeClock()

	surface := render.NewMemorySurface(initialView)
	trigger := alert.NewTrigger(surface, alert.DefaultDuration, clock, metrics)
	engine := render.NewEngine(surface, trigger, logger, metrics)
	locator := locate.NewService(surface, nil, 10, logger, metrics)

	p := pipeline.New(session.New(domain.Live), f, engine, locator, publisher, logger, metrics)
	return &harness{pipeline: p, surface: surface, clock: clock}
}

func event(magnitude, lon, lat float64) domain.EventRecord {
	return domain.EventRecord{
		Date:        "2023-02-06",
		Time:        "04:17",
		Depth:       10,
		Magnitude:   magnitude,
		Coordinates: []float64{lon, lat},
	}
}

func izmir() domain.EventCollection {
	return domain.EventCollection{"Izmir": {event(6.5, 27.1287, 38.4192)}}
}

func eventLayers(s *render.MemorySurface) []render.Layer {
	var out []render.Layer
	for _, l := range s.Layers() {
		if l.Kind == render.KindEvent {
			out = append(out, l)
		}
	}
	return out
}

// --- tests ---

func TestShowEvents_HighMagnitude(t *testing.T) {
	h := newHarness(returning(izmir()), nil)

	res, err := h.pipeline.ShowEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Drawn)
	assert.Equal(t, 1, res.Alerts)

	layers := eventLayers(h.surface)
	require.Len(t, layers, 1)
	assert.Equal(t, "red", layers[0].Color)
	assert.Equal(t, 65000.0, layers[0].Radius)
	assert.Equal(t, 38.4192, layers[0].Lat)
	assert.Equal(t, 27.1287, layers[0].Lon)
	assert.True(t, h.surface.Snapshot().AlertActive)

	h.clock.Advance(alert.DefaultDuration)
	require.Eventually(t, func() bool {
		return !h.surface.Snapshot().AlertActive
	}, time.Second, 5*time.Millisecond)
}

func TestApplyFilter_LocationMismatchDrawsNothing(t *testing.T) {
	h := newHarness(returning(izmir()), nil)

	_, err := h.pipeline.ShowEvents(context.Background())
	require.NoError(t, err)

	res, err := h.pipeline.ApplyFilter(context.Background(), domain.FilterCriteria{Location: "Ankara"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)
	assert.Zero(t, res.Drawn)
	assert.Empty(t, eventLayers(h.surface))
}

func TestApplyFilter_LowBand(t *testing.T) {
	h := newHarness(returning(domain.EventCollection{
		"Bursa": {event(3.9, 29.06, 40.18), event(4.0, 29.07, 40.19)},
	}), nil)

	res, err := h.pipeline.ApplyFilter(context.Background(), domain.FilterCriteria{Band: domain.BandLow})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Drawn)

	layers := eventLayers(h.surface)
	require.Len(t, layers, 1)
	assert.Equal(t, "yellow", layers[0].Color)
}

func TestShowEvents_FetchFailureClearsMap(t *testing.T) {
	var failing atomic.Bool
	h := newHarness(&stubFetcher{fn: func(context.Context, domain.Mode) domain.EventCollection {
		if failing.Load() {
			return domain.EventCollection{}
		}
		return izmir()
	}}, nil)

	_, err := h.pipeline.ShowEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, eventLayers(h.surface), 1)

	failing.Store(true)
	res, err := h.pipeline.ShowEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)
	assert.Empty(t, eventLayers(h.surface))
}

func TestToggleSource_AlternatesModes(t *testing.T) {
	f := returning(domain.EventCollection{})
	h := newHarness(f, nil)

	mode, _, err := h.pipeline.ToggleSource(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Stored, mode)

	mode, _, err = h.pipeline.ToggleSource(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Live, mode)

	assert.Equal(t, []domain.Mode{domain.Stored, domain.Live}, f.calls())
}

func TestShowEvents_SupersededRenderIsDiscarded(t *testing.T) {
	started := make(chan struct{})
	var n atomic.Int32
	f := &stubFetcher{fn: func(ctx context.Context, _ domain.Mode) domain.EventCollection {
		if n.Add(1) == 1 {
			close(started)
			<-ctx.Done()
			return izmir()
		}
		return domain.EventCollection{"Ankara": {event(4.5, 32.85, 39.93)}}
	}}
	h := newHarness(f, nil)

	errc := make(chan error, 1)
	go func() {
		_, err := h.pipeline.ShowEvents(context.Background())
		errc <- err
	}()
	<-started

	res, err := h.pipeline.ShowEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Drawn)

	require.ErrorIs(t, <-errc, pipeline.ErrSuperseded)

	layers := eventLayers(h.surface)
	require.Len(t, layers, 1)
	assert.Equal(t, "orange", layers[0].Color)
	assert.False(t, h.surface.Snapshot().AlertActive, "superseded high event must not alert")
}

func TestShowEvents_CancelledContext(t *testing.T) {
	h := newHarness(returning(izmir()), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.pipeline.ShowEvents(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, eventLayers(h.surface))
}

func TestFilterPanel(t *testing.T) {
	h := newHarness(returning(izmir()), nil)

	assert.True(t, h.pipeline.ToggleFilterPanel())
	_, err := h.pipeline.ApplyFilter(context.Background(), domain.FilterCriteria{Band: domain.BandHigh})
	require.NoError(t, err)
	assert.False(t, h.pipeline.Session().FilterPanelOpen())

	assert.True(t, h.pipeline.ToggleFilterPanel())
	_, err = h.pipeline.ResetFilter(context.Background())
	require.NoError(t, err)
	assert.False(t, h.pipeline.Session().FilterPanelOpen())
	assert.True(t, h.pipeline.Session().Criteria().IsZero())
}

func TestApplyFilter_CancelledKeepsPreviousCriteria(t *testing.T) {
	h := newHarness(returning(izmir()), nil)

	previous := domain.FilterCriteria{Location: "izm"}
	_, err := h.pipeline.ApplyFilter(context.Background(), previous)
	require.NoError(t, err)
	assert.True(t, h.pipeline.ToggleFilterPanel())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.pipeline.ApplyFilter(ctx, domain.FilterCriteria{Location: "ankara"})
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, previous, h.pipeline.Session().Criteria())
	assert.True(t, h.pipeline.Session().FilterPanelOpen())

	res, err := h.pipeline.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Drawn)
}

func TestApplyFilter_SupersededIsNotRemembered(t *testing.T) {
	started := make(chan struct{})
	var n atomic.Int32
	f := &stubFetcher{fn: func(ctx context.Context, _ domain.Mode) domain.EventCollection {
		if n.Add(1) == 1 {
			close(started)
			<-ctx.Done()
		}
		return izmir()
	}}
	h := newHarness(f, nil)

	errc := make(chan error, 1)
	go func() {
		_, err := h.pipeline.ApplyFilter(context.Background(), domain.FilterCriteria{Location: "ankara"})
		errc <- err
	}()
	<-started

	_, err := h.pipeline.ShowEvents(context.Background())
	require.NoError(t, err)
	require.ErrorIs(t, <-errc, pipeline.ErrSuperseded)

	assert.True(t, h.pipeline.Session().Criteria().IsZero())
	res, err := h.pipeline.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Drawn)
}

func TestRefresh_ReappliesLastFilter(t *testing.T) {
	h := newHarness(returning(domain.EventCollection{
		"Izmir":  {event(6.5, 27.1287, 38.4192)},
		"Ankara": {event(4.5, 32.85, 39.93)},
	}), nil)

	_, err := h.pipeline.ApplyFilter(context.Background(), domain.FilterCriteria{Location: "ank"})
	require.NoError(t, err)

	res, err := h.pipeline.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Drawn)
	assert.Zero(t, res.Alerts)
}

func TestCheckReadiness(t *testing.T) {
	h := newHarness(returning(domain.EventCollection{}), nil)

	require.Error(t, h.pipeline.CheckReadiness(context.Background()))

	_, err := h.pipeline.ShowEvents(context.Background())
	require.NoError(t, err)
	require.NoError(t, h.pipeline.CheckReadiness(context.Background()))
}

func TestLocate(t *testing.T) {
	h := newHarness(returning(domain.EventCollection{}), nil)

	_, err := h.pipeline.Locate(context.Background(), locate.StaticLocator{Lat: 41.0082, Lon: 28.9784})
	require.NoError(t, err)
	assert.Equal(t, render.View{Lat: 41.0082, Lon: 28.9784, Zoom: 10}, h.surface.Snapshot().View)

	_, err = h.pipeline.Locate(context.Background(), locate.FailingLocator{Err: locate.ErrPermissionDenied})
	require.ErrorIs(t, err, locate.ErrPermissionDenied)
	assert.Equal(t, render.View{Lat: 41.0082, Lon: 28.9784, Zoom: 10}, h.surface.Snapshot().View)
}

func TestShowEvents_PublishesAlerts(t *testing.T) {
	pub := &recordingPublisher{}
	h := newHarness(returning(domain.EventCollection{
		"Izmir":  {event(6.5, 27.1287, 38.4192)},
		"Ankara": {event(4.5, 32.85, 39.93)},
	}), pub)

	_, err := h.pipeline.ShowEvents(context.Background())
	require.NoError(t, err)

	require.Len(t, pub.markers, 1)
	assert.Equal(t, "Izmir", pub.markers[0].City)
}

func TestShowEvents_PublishFailureIsNotFatal(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	h := newHarness(returning(izmir()), pub)

	res, err := h.pipeline.ShowEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Drawn)
}
