// Package alert raises a transient visual alert on a display surface.
package alert

import (
	"sync"
	"time"

	"github.com/couchcryptid/quake-map-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// DefaultDuration is how long a single alert keeps the surface active.
const DefaultDuration = 500 * time.Millisecond

// Indicator is the surface whose alert state is switched on and off.
type Indicator interface {
	SetAlert(active bool)
}

// Trigger counts outstanding alerts. The indicator turns on when the count
// leaves zero and off when it returns to zero, so overlapping alerts keep the
// surface active until the last one expires.
type Trigger struct {
	indicator Indicator
	duration  time.Duration
	clock     clockwork.Clock
	metrics   *observability.Metrics

	mu          sync.Mutex
	outstanding int
}

// NewTrigger creates a Trigger. A non-positive duration uses DefaultDuration;
// a nil clock uses the real clock.
func NewTrigger(indicator Indicator, duration time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *Trigger {
	if duration <= 0 {
		duration = DefaultDuration
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Trigger{
		indicator: indicator,
		duration:  duration,
		clock:     clock,
		metrics:   metrics,
	}
}

// Fire activates the alert and schedules its own release after the trigger's duration.
func (t *Trigger) Fire() {
	t.mu.Lock()
	t.outstanding++
	if t.outstanding == 1 {
		t.setActive(true)
	}
	t.mu.Unlock()

	t.metrics.AlertsFired.Inc()
	t.clock.AfterFunc(t.duration, t.release)
}

func (t *Trigger) release() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.outstanding == 0 {
		return
	}
	t.outstanding--
	if t.outstanding == 0 {
		t.setActive(false)
	}
}

// setActive must be called with t.mu held.
func (t *Trigger) setActive(active bool) {
	t.indicator.SetAlert(active)
	if active {
		t.metrics.AlertActive.Set(1)
	} else {
		t.metrics.AlertActive.Set(0)
	}
}

// Active reports whether at least one alert is outstanding.
func (t *Trigger) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outstanding > 0
}

// Outstanding returns the number of alerts that have not yet expired.
func (t *Trigger) Outstanding() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outstanding
}
