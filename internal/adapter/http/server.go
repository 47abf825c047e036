package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/quake-map-service/internal/domain"
	"github.com/couchcryptid/quake-map-service/internal/locate"
	"github.com/couchcryptid/quake-map-service/internal/pipeline"
	"github.com/couchcryptid/quake-map-service/internal/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxRequestBytes = 1 << 16

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Controller is the set of map controls exposed over HTTP.
type Controller interface {
	ReadinessChecker
	State() pipeline.State
	ToggleSource(ctx context.Context) (domain.Mode, render.Result, error)
	ToggleFilterPanel() bool
	ApplyFilter(ctx context.Context, criteria domain.FilterCriteria) (render.Result, error)
	ResetFilter(ctx context.Context) (render.Result, error)
	Locate(ctx context.Context, locator locate.Locator) (domain.Coordinate, error)
}

// Snapshotter returns the current map state.
type Snapshotter interface {
	Snapshot() render.Snapshot
}

// Server exposes health, metrics and map control endpoints.
type Server struct {
	httpServer *http.Server
	controller Controller
	snapshots  Snapshotter
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /api map routes.
func NewServer(addr string, controller Controller, snapshots Snapshotter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		controller: controller,
		snapshots:  snapshots,
		logger:     logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(controller))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/source", s.handleState)
	mux.HandleFunc("POST /api/source/toggle", s.handleToggleSource)
	mux.HandleFunc("POST /api/filter/panel", s.handleTogglePanel)
	mux.HandleFunc("POST /api/filter", s.handleApplyFilter)
	mux.HandleFunc("POST /api/filter/reset", s.handleResetFilter)
	mux.HandleFunc("POST /api/location", s.handleLocation)
	mux.HandleFunc("GET /api/map", s.handleMap)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

type renderResponse struct {
	State  pipeline.State `json:"state"`
	Result render.Result  `json:"result"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.State())
}

func (s *Server) handleToggleSource(w http.ResponseWriter, r *http.Request) {
	_, res, err := s.controller.ToggleSource(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderResponse{State: s.controller.State(), Result: res})
}

func (s *Server) handleTogglePanel(w http.ResponseWriter, _ *http.Request) {
	s.controller.ToggleFilterPanel()
	writeJSON(w, http.StatusOK, s.controller.State())
}

type filterRequest struct {
	Location  string `json:"location"`
	Magnitude string `json:"magnitude"`
}

func (s *Server) handleApplyFilter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	band, err := domain.ParseBand(req.Magnitude)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	res, err := s.controller.ApplyFilter(r.Context(), domain.FilterCriteria{Location: req.Location, Band: band})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderResponse{State: s.controller.State(), Result: res})
}

func (s *Server) handleResetFilter(w http.ResponseWriter, r *http.Request) {
	res, err := s.controller.ResetFilter(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderResponse{State: s.controller.State(), Result: res})
}

type locationRequest struct {
	Lat   *float64 `json:"lat"`
	Lon   *float64 `json:"lon"`
	Error string   `json:"error"`
}

func (r locationRequest) locator() (locate.Locator, error) {
	if r.Error != "" {
		l, ok := locate.ParseFailure(r.Error)
		if !ok {
			return nil, errors.New("error must be one of unsupported, permission_denied, timeout")
		}
		return l, nil
	}
	if r.Lat == nil || r.Lon == nil {
		return nil, errors.New("lat and lon are required")
	}
	if *r.Lat < -90 || *r.Lat > 90 || *r.Lon < -180 || *r.Lon > 180 {
		return nil, errors.New("lat or lon out of range")
	}
	return locate.StaticLocator{Lat: *r.Lat, Lon: *r.Lon}, nil
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	locator, err := req.locator()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	pos, err := s.controller.Locate(r.Context(), locator)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

func (s *Server) handleMap(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshots.Snapshot())
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrSuperseded):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		s.logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
