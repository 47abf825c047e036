// Package locate places the user's own position on the map.
package locate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/couchcryptid/quake-map-service/internal/domain"
	"github.com/couchcryptid/quake-map-service/internal/observability"
	"github.com/couchcryptid/quake-map-service/internal/render"
)

// SelfLabel is the popup shown on the self marker.
const SelfLabel = "Your location"

// Locator failures.
var (
	ErrUnsupported      = errors.New("geolocation is not supported")
	ErrPermissionDenied = errors.New("geolocation permission denied")
	ErrTimeout          = errors.New("geolocation timed out")
)

// Locator obtains the current position of the device.
type Locator interface {
	Locate(ctx context.Context) (domain.Coordinate, error)
}

// StaticLocator always reports the same position.
type StaticLocator domain.Coordinate

func (l StaticLocator) Locate(_ context.Context) (domain.Coordinate, error) {
	return domain.Coordinate(l), nil
}

// FailingLocator always fails with Err.
type FailingLocator struct {
	Err error
}

func (l FailingLocator) Locate(_ context.Context) (domain.Coordinate, error) {
	if l.Err == nil {
		return domain.Coordinate{}, ErrUnsupported
	}
	return domain.Coordinate{}, l.Err
}

// ParseFailure maps a client-reported failure reason to a locator that
// reports it.
func ParseFailure(reason string) (FailingLocator, bool) {
	switch reason {
	case "unsupported":
		return FailingLocator{Err: ErrUnsupported}, true
	case "permission_denied":
		return FailingLocator{Err: ErrPermissionDenied}, true
	case "timeout":
		return FailingLocator{Err: ErrTimeout}, true
	default:
		return FailingLocator{}, false
	}
}

// Service keeps a single self marker on the surface.
type Service struct {
	surface  render.Surface
	geocoder domain.ReverseGeocoder
	zoom     int
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu sync.Mutex
}

// NewService creates a Service. geocoder may be nil.
func NewService(surface render.Surface, geocoder domain.ReverseGeocoder, zoom int, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		surface:  surface,
		geocoder: geocoder,
		zoom:     zoom,
		logger:   logger,
		metrics:  metrics,
	}
}

// ShowUserLocation asks locator for a position. On success the viewport is
// centered there and the self marker is redrawn. On failure the surface is
// left untouched and the error is returned.
func (s *Service) ShowUserLocation(ctx context.Context, locator Locator) (domain.Coordinate, error) {
	pos, err := locator.Locate(ctx)
	if err != nil {
		s.metrics.LocateRequests.WithLabelValues("error").Inc()
		s.logger.Warn("geolocation unavailable", "error", err)
		return domain.Coordinate{}, fmt.Errorf("locate: %w", err)
	}

	popup := s.label(ctx, pos)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.surface.SetView(render.View{Lat: pos.Lat, Lon: pos.Lon, Zoom: s.zoom})
	render.RemoveKind(s.surface, render.KindSelf)
	s.surface.Add(render.Layer{
		Kind:  render.KindSelf,
		Shape: render.ShapePoint,
		Lat:   pos.Lat,
		Lon:   pos.Lon,
		Popup: popup,
	})

	s.metrics.LocateRequests.WithLabelValues("success").Inc()
	s.logger.Info("user location shown", "lat", pos.Lat, "lon", pos.Lon)
	return pos, nil
}

func (s *Service) label(ctx context.Context, pos domain.Coordinate) string {
	if s.geocoder == nil {
		return SelfLabel
	}
	result, err := s.geocoder.ReverseGeocode(ctx, pos.Lat, pos.Lon)
	if err != nil {
		s.logger.Warn("reverse geocode failed", "error", err, "lat", pos.Lat, "lon", pos.Lon)
		return SelfLabel
	}
	if result.FormattedAddress == "" {
		return SelfLabel
	}
	return SelfLabel + "\n" + result.FormattedAddress
}
