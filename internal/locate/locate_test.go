package locate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/couchcryptid/quake-map-service/internal/domain"
	"github.com/couchcryptid/quake-map-service/internal/observability"
	"github.com/couchcryptid/quake-map-service/internal/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var initialView = render.View{Lat: 39.9334, Lon: 32.8597, Zoom: 6}

type stubGeocoder struct {
	result domain.GeocodingResult
	err    error
}

func (g stubGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (domain.GeocodingResult, error) {
	return g.result, g.err
}

func newTestService(surface render.Surface, geocoder domain.ReverseGeocoder) *Service {
	return NewService(surface, geocoder, 10, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
}

func selfLayers(s *render.MemorySurface) []render.Layer {
	var out []render.Layer
	for _, l := range s.Layers() {
		if l.Kind == render.KindSelf {
			out = append(out, l)
		}
	}
	return out
}

func TestShowUserLocation_Success(t *testing.T) {
	surface := render.NewMemorySurface(initialView)
	svc := newTestService(surface, nil)

	pos, err := svc.ShowUserLocation(context.Background(), StaticLocator{Lat: 41.0082, Lon: 28.9784})
	require.NoError(t, err)
	assert.Equal(t, domain.Coordinate{Lat: 41.0082, Lon: 28.9784}, pos)

	snap := surface.Snapshot()
	assert.Equal(t, render.View{Lat: 41.0082, Lon: 28.9784, Zoom: 10}, snap.View)

	self := selfLayers(surface)
	require.Len(t, self, 1)
	assert.Equal(t, render.ShapePoint, self[0].Shape)
	assert.Equal(t, SelfLabel, self[0].Popup)
}

func TestShowUserLocation_ReplacesSelfMarker(t *testing.T) {
	surface := render.NewMemorySurface(initialView)
	surface.Add(render.Layer{Kind: render.KindEvent, Shape: render.ShapeCircle, Lat: 38.4, Lon: 27.1})
	svc := newTestService(surface, nil)

	_, err := svc.ShowUserLocation(context.Background(), StaticLocator{Lat: 41, Lon: 29})
	require.NoError(t, err)
	_, err = svc.ShowUserLocation(context.Background(), StaticLocator{Lat: 40, Lon: 30})
	require.NoError(t, err)

	self := selfLayers(surface)
	require.Len(t, self, 1)
	assert.Equal(t, 40.0, self[0].Lat)
	assert.Len(t, surface.Layers(), 2, "event layer should be untouched")
}

func TestShowUserLocation_Failures(t *testing.T) {
	for _, want := range []error{ErrUnsupported, ErrPermissionDenied, ErrTimeout} {
		t.Run(want.Error(), func(t *testing.T) {
			surface := render.NewMemorySurface(initialView)
			svc := newTestService(surface, nil)

			_, err := svc.ShowUserLocation(context.Background(), FailingLocator{Err: want})
			require.ErrorIs(t, err, want)

			snap := surface.Snapshot()
			assert.Equal(t, initialView, snap.View)
			assert.Empty(t, snap.Layers)
		})
	}
}

func TestFailingLocator_DefaultsToUnsupported(t *testing.T) {
	_, err := FailingLocator{}.Locate(context.Background())
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestShowUserLocation_GeocodedLabel(t *testing.T) {
	surface := render.NewMemorySurface(initialView)
	svc := newTestService(surface, stubGeocoder{result: domain.GeocodingResult{FormattedAddress: "Istanbul, Turkey"}})

	_, err := svc.ShowUserLocation(context.Background(), StaticLocator{Lat: 41.0082, Lon: 28.9784})
	require.NoError(t, err)

	self := selfLayers(surface)
	require.Len(t, self, 1)
	assert.Equal(t, "Your location\nIstanbul, Turkey", self[0].Popup)
}

func TestShowUserLocation_GeocodeErrorFallsBack(t *testing.T) {
	surface := render.NewMemorySurface(initialView)
	svc := newTestService(surface, stubGeocoder{err: errors.New("rate limited")})

	_, err := svc.ShowUserLocation(context.Background(), StaticLocator{Lat: 41, Lon: 29})
	require.NoError(t, err)

	self := selfLayers(surface)
	require.Len(t, self, 1)
	assert.Equal(t, SelfLabel, self[0].Popup)
}

func TestParseFailure(t *testing.T) {
	tests := []struct {
		reason string
		want   error
		ok     bool
	}{
		{"unsupported", ErrUnsupported, true},
		{"permission_denied", ErrPermissionDenied, true},
		{"timeout", ErrTimeout, true},
		{"other", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			got, ok := ParseFailure(tt.reason)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got.Err)
		})
	}
}
