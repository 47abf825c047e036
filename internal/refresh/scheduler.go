// Package refresh re-renders the active data source on a cron schedule.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/quake-map-service/internal/pipeline"
	"github.com/couchcryptid/quake-map-service/internal/render"
	"github.com/robfig/cron/v3"
)

// Refresher redraws the map with its current source and filter.
type Refresher interface {
	Refresh(ctx context.Context) (render.Result, error)
}

// Scheduler runs Refresh on a cron schedule. A run still in progress when the
// next tick fires causes that tick to be skipped.
type Scheduler struct {
	cron    *cron.Cron
	target  Refresher
	timeout time.Duration
	logger  *slog.Logger

	ctx context.Context
}

// New creates a Scheduler for a standard five-field cron spec or a
// descriptor such as "@every 5m". Each run is bounded by timeout.
func New(spec string, target Refresher, timeout time.Duration, logger *slog.Logger) (*Scheduler, error) {
	cl := cronLogger{logger: logger}
	s := &Scheduler{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		target:  target,
		timeout: timeout,
		logger:  logger,
		ctx:     context.Background(),
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("schedule refresh %q: %w", spec, err)
	}
	return s, nil
}

// Start begins running scheduled refreshes. Runs use a context derived from ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.logger.Info("refresh scheduler started", "entries", len(s.cron.Entries()))
	s.cron.Start()
}

// Stop halts the schedule and waits for a running refresh to finish or ctx
// to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("refresh still running at shutdown")
	}
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	res, err := s.target.Refresh(ctx)
	switch {
	case errors.Is(err, pipeline.ErrSuperseded):
		s.logger.Debug("scheduled refresh superseded")
	case err != nil:
		s.logger.Warn("scheduled refresh failed", "error", err)
	default:
		s.logger.Debug("scheduled refresh complete", "drawn", res.Drawn, "alerts", res.Alerts)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
