package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for Mailkite
type Metrics struct {
	// Per-message counters
	EmailsSentTotal   *prometheus.CounterVec
	EmailsFailedTotal *prometheus.CounterVec

	// Campaign lifecycle
	CampaignsDispatchedTotal *prometheus.CounterVec
	CampaignsInFlight        prometheus.Gauge
	CampaignDurationSeconds  prometheus.Histogram

	// Engagement
	OpensRecordedTotal  prometheus.Counter
	ClicksRecordedTotal prometheus.Counter

	// API metrics
	APIRequestsTotal          *prometheus.CounterVec
	APIRequestDurationSeconds *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates a Metrics instance with all metrics registered on its own
// registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		EmailsSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailkite_emails_sent_total",
				Help: "Total number of successfully delivered campaign emails",
			},
			[]string{"campaign"},
		),
		EmailsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailkite_emails_failed_total",
				Help: "Total number of failed campaign emails",
			},
			[]string{"campaign"},
		),
		CampaignsDispatchedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailkite_campaigns_dispatched_total",
				Help: "Total number of campaign send runs, by trigger",
			},
			[]string{"trigger"},
		),
		CampaignsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailkite_campaigns_in_flight",
				Help: "Number of campaigns currently sending",
			},
		),
		CampaignDurationSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mailkite_campaign_duration_seconds",
				Help:    "Wall-clock duration of campaign send runs",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
		),
		OpensRecordedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mailkite_opens_recorded_total",
				Help: "Total number of open events recorded",
			},
		),
		ClicksRecordedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mailkite_clicks_recorded_total",
				Help: "Total number of click events recorded",
			},
		),
		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailkite_api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		APIRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailkite_api_request_duration_seconds",
				Help:    "API request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.EmailsSentTotal,
		m.EmailsFailedTotal,
		m.CampaignsDispatchedTotal,
		m.CampaignsInFlight,
		m.CampaignDurationSeconds,
		m.OpensRecordedTotal,
		m.ClicksRecordedTotal,
		m.APIRequestsTotal,
		m.APIRequestDurationSeconds,
	)
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Handler returns the /metrics HTTP handler for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
