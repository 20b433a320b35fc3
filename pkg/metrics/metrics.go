// Package metrics exposes Prometheus instrumentation for loads, yearly
// analyses and HTTP requests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gilchrisn/trail-community-service/pkg/models"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Loading
	rowsLoaded   *prometheus.CounterVec
	rowsRejected *prometheus.CounterVec

	// Analysis
	yearsAnalyzed   *prometheus.CounterVec
	analysisSeconds prometheus.Histogram
	communities     *prometheus.GaugeVec
	omittedHikers   *prometheus.GaugeVec

	// HTTP
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	rateLimited     prometheus.Counter
}

// New creates the collectors on a private registry
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.rowsLoaded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trail_journal_rows_loaded_total",
			Help: "Journal rows accepted by the loader",
		},
		[]string{"format"},
	)
	m.rowsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trail_journal_rows_rejected_total",
			Help: "Journal rows rejected as malformed, by offending field",
		},
		[]string{"field"},
	)
	m.yearsAnalyzed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trail_years_analyzed_total",
			Help: "Yearly analyses by outcome",
		},
		[]string{"status"},
	)
	m.analysisSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trail_year_analysis_seconds",
			Help:    "Time to analyze one year",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		},
	)
	m.communities = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trail_communities",
			Help: "Communities found in the last analysis of a year",
		},
		[]string{"year"},
	)
	m.omittedHikers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trail_hikers_without_trajectory",
			Help: "Hikers left out of frames for lack of position data",
		},
		[]string{"year"},
	)
	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trail_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "method", "code"},
	)
	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trail_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	m.rateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trail_http_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	m.registry.MustRegister(
		m.rowsLoaded, m.rowsRejected,
		m.yearsAnalyzed, m.analysisSeconds, m.communities, m.omittedHikers,
		m.requestsTotal, m.requestDuration, m.rateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live in
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordLoad counts accepted and rejected rows of one table load
func (m *Metrics) RecordLoad(format string, accepted int, rejected []*models.MalformedRecordError) {
	if m == nil {
		return
	}
	m.rowsLoaded.WithLabelValues(format).Add(float64(accepted))
	for _, r := range rejected {
		m.rowsRejected.WithLabelValues(r.Field).Inc()
	}
}

// ObserveYear records one yearly analysis
func (m *Metrics) ObserveYear(year int, elapsed time.Duration, communities int, err error) {
	if m == nil {
		return
	}
	status := "ok"
	switch {
	case err == nil:
	case models.IsNoData(err):
		status = "no_data"
	default:
		status = "error"
	}
	m.yearsAnalyzed.WithLabelValues(status).Inc()
	m.analysisSeconds.Observe(elapsed.Seconds())
	if err == nil {
		m.communities.WithLabelValues(strconv.Itoa(year)).Set(float64(communities))
	}
}

// ObserveOmittedHikers records hikers without a usable trajectory
func (m *Metrics) ObserveOmittedHikers(year int, count int) {
	if m == nil {
		return
	}
	m.omittedHikers.WithLabelValues(strconv.Itoa(year)).Set(float64(count))
}

// ObserveRequest records one HTTP request
func (m *Metrics) ObserveRequest(route, method string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// RateLimited counts one rejected request
func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}
