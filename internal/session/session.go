// Package session holds the per-map state that user controls mutate: the
// active data source, the filter panel, the last applied filter and the
// request generation used to discard superseded renders.
package session

import (
	"context"
	"sync"

	"github.com/couchcryptid/quake-map-service/internal/domain"
)

// Session is safe for concurrent use.
type Session struct {
	mu         sync.Mutex
	mode       domain.Mode
	panelOpen  bool
	criteria   domain.FilterCriteria
	generation uint64
	cancel     context.CancelFunc
}

// New creates a session starting on the given data source.
func New(initial domain.Mode) *Session {
	return &Session{mode: initial}
}

// Current returns the active data source.
func (s *Session) Current() domain.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Toggle flips the active data source and returns the new one.
func (s *Session) Toggle() domain.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = s.mode.Other()
	return s.mode
}

// ToggleFilterPanel opens a closed filter panel or closes an open one and
// returns the new state.
func (s *Session) ToggleFilterPanel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panelOpen = !s.panelOpen
	return s.panelOpen
}

// SetFilterPanel forces the filter panel state.
func (s *Session) SetFilterPanel(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panelOpen = open
}

// FilterPanelOpen reports whether the filter panel is open.
func (s *Session) FilterPanelOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.panelOpen
}

// Criteria returns the last applied filter.
func (s *Session) Criteria() domain.FilterCriteria {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.criteria
}

// SetCriteria records the filter a refresh should re-apply.
func (s *Session) SetCriteria(k domain.FilterCriteria) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria = k
}

// Begin starts a new request generation. The request made by the previous
// generation is cancelled; the returned context is cancelled in turn when a
// newer generation begins or parent is done.
func (s *Session) Begin(parent context.Context) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.generation++
	return ctx, s.generation
}

// IsCurrent reports whether gen is the newest generation.
func (s *Session) IsCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.generation
}

// Generation returns the newest generation number.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}
