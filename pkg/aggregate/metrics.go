package aggregate

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts fetch outcomes. A nil *Metrics records nothing.
type Metrics struct {
	// Fetches: per-URL outcomes labelled ok / network / http_status / parse
	Fetches *prometheus.CounterVec

	// FetchDuration: time spent on one URL, labelled like Fetches
	FetchDuration *prometheus.HistogramVec

	// Records: instruction records handed to callers
	Records prometheus.Counter
}

// NewMetrics registers the aggregator metrics on reg.
// A nil reg gets a private registry that is never exported.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		Fetches: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "instructions_fetch_total",
			Help: "Total number of instruction document fetches by outcome.",
		}, []string{"outcome"}),

		FetchDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "instructions_fetch_duration_seconds",
			Help:    "Histogram of instruction document fetch latencies.",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"outcome"}),

		Records: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "instructions_records_total",
			Help: "Total number of instruction records aggregated.",
		}),
	}
}

func (m *Metrics) observe(r Result, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := r.Kind()
	if outcome == "" {
		outcome = "ok"
	}
	m.Fetches.WithLabelValues(outcome).Inc()
	m.FetchDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) addRecords(n int) {
	if m == nil || n == 0 {
		return
	}
	m.Records.Add(float64(n))
}
