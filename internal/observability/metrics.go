package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quake_map"

// Metrics holds the Prometheus counters, histograms, and gauges for the visualization pipeline.
type Metrics struct {
	// Data provider metrics.
	FetchRequests *prometheus.CounterVec   // labels: mode={live,stored}, outcome={success,error,cancelled}
	FetchDuration *prometheus.HistogramVec // labels: mode={live,stored}
	EventsFetched prometheus.Counter

	// Render metrics.
	RendersTotal    prometheus.Counter
	StaleRenders    prometheus.Counter
	MarkersRendered prometheus.Gauge
	AlertsFired     prometheus.Counter
	AlertActive     prometheus.Gauge
	AlertsPublished *prometheus.CounterVec // labels: outcome={success,error}

	// Location metrics.
	LocateRequests *prometheus.CounterVec // labels: outcome={success,error}

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "Data provider requests by source mode and outcome.",
		}, []string{"mode", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Data provider request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"mode"}),
		EventsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_fetched_total",
			Help:      "Total event records received from the data provider.",
		}),
		RendersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renders_total",
			Help:      "Total render passes executed against the map surface.",
		}),
		StaleRenders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_renders_total",
			Help:      "Render passes discarded because a newer request superseded them.",
		}),
		MarkersRendered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "markers_rendered",
			Help:      "Event markers currently drawn on the map surface.",
		}),
		AlertsFired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_fired_total",
			Help:      "Total high-magnitude alerts fired.",
		}),
		AlertActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alert_active",
			Help:      "1 while at least one alert is outstanding, 0 otherwise.",
		}),
		AlertsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_published_total",
			Help:      "Alert batches published to Kafka by outcome.",
		}, []string{"outcome"}),
		LocateRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locate_requests_total",
			Help:      "User geolocation attempts by outcome.",
		}, []string{"outcome"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Reverse geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}

	prometheus.MustRegister(
		m.FetchRequests,
		m.FetchDuration,
		m.EventsFetched,
		m.RendersTotal,
		m.StaleRenders,
		m.MarkersRendered,
		m.AlertsFired,
		m.AlertActive,
		m.AlertsPublished,
		m.LocateRequests,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		FetchRequests:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "fetch_requests_total"}, []string{"mode", "outcome"}),
		FetchDuration:      prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "fetch_duration_seconds"}, []string{"mode"}),
		EventsFetched:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "events_fetched_total"}),
		RendersTotal:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "renders_total"}),
		StaleRenders:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "stale_renders_total"}),
		MarkersRendered:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "markers_rendered"}),
		AlertsFired:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "alerts_fired_total"}),
		AlertActive:        prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "alert_active"}),
		AlertsPublished:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "alerts_published_total"}, []string{"outcome"}),
		LocateRequests:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "locate_requests_total"}, []string{"outcome"}),
		GeocodeRequests:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "geocode_requests_total"}, []string{"outcome"}),
		GeocodeCache:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "geocode_cache_total"}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "geocode_api_duration_seconds"}),
	}
}
