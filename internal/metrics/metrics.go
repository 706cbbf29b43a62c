// Package metrics exposes Prometheus collectors for enrichment runs.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for voterstat_lookups_total.
const (
	OutcomeEmitted = "emitted"
	OutcomeDropped = "dropped"
	OutcomeFailed  = "failed"
)

var (
	rowsAdmittedTotal     prometheus.Counter
	lookupsTotal          *prometheus.CounterVec
	lookupDurationSeconds *prometheus.HistogramVec
	inFlight              prometheus.Gauge
	httpRequestsTotal     *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		rowsAdmittedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "voterstat_rows_admitted_total",
				Help: "Total number of input rows admitted by the dispatcher.",
			},
		)

		lookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voterstat_lookups_total",
				Help: "Total number of settled lookup units, labeled by outcome and stage.",
			},
			[]string{"outcome", "stage"},
		)

		lookupDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "voterstat_lookup_duration_seconds",
				Help:    "Histogram of remote lookup round-trip latencies, labeled by result.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"result"},
		)

		inFlight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "voterstat_in_flight",
				Help: "Number of admitted lookup units the dispatcher has not yet seen settle.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voterstat_http_requests_total",
				Help: "Total number of requests served by the metrics listener, labeled by route and code.",
			},
			[]string{"route", "code"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAdmission counts one admitted row.
func ObserveAdmission() {
	Init()
	rowsAdmittedTotal.Inc()
}

// ObserveSettlement counts one settled unit. stage is empty for emitted rows.
func ObserveSettlement(outcome, stage string) {
	Init()
	if stage == "" {
		stage = "none"
	}
	lookupsTotal.WithLabelValues(outcome, stage).Inc()
}

// ObserveLookup records the latency of one remote lookup.
func ObserveLookup(ok bool, duration time.Duration) {
	Init()
	result := "success"
	if !ok {
		result = "error"
	}
	lookupDurationSeconds.WithLabelValues(result).Observe(duration.Seconds())
}

// SetInFlight publishes the current in-flight count.
func SetInFlight(n int) {
	Init()
	inFlight.Set(float64(n))
}

// ObserveHTTPRequest counts one request to the metrics listener.
func ObserveHTTPRequest(route string, code int) {
	Init()
	httpRequestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
