// Package metrics exposes Prometheus counters for attendance events and
// HTTP traffic. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "timekeeper"

type Metrics struct {
	checkIns      *prometheus.CounterVec
	checkOuts     *prometheus.CounterVec
	breakRequests *prometheus.CounterVec
	reviews       *prometheus.CounterVec
	overruns      *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// New registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		checkIns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "check_ins_total",
			Help:      "Check-ins by arrival status.",
		}, []string{"status"}),
		checkOuts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "check_outs_total",
			Help:      "Check-outs, split by whether overtime was flagged.",
		}, []string{"overtime_flagged"}),
		breakRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "break_requests_total",
			Help:      "Break request decisions. code is the violated rule for denials.",
		}, []string{"outcome", "code"}),
		reviews: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "break_reviews_total",
			Help:      "Supervisor decisions on pending break requests.",
		}, []string{"decision"}),
		overruns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "break_overruns_total",
			Help:      "Completed breaks that lasted longer than allowed.",
		}, []string{"rule"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// Break request outcomes.
const (
	OutcomeAutoApproved = "auto_approved"
	OutcomePending      = "pending"
	OutcomeDenied       = "denied"
)

func (m *Metrics) CheckIn(status string) {
	if m == nil {
		return
	}
	m.checkIns.WithLabelValues(status).Inc()
}

func (m *Metrics) CheckOut(overtimeFlagged bool) {
	if m == nil {
		return
	}
	m.checkOuts.WithLabelValues(strconv.FormatBool(overtimeFlagged)).Inc()
}

func (m *Metrics) BreakRequest(outcome, code string) {
	if m == nil {
		return
	}
	m.breakRequests.WithLabelValues(outcome, code).Inc()
}

func (m *Metrics) Review(decision string) {
	if m == nil {
		return
	}
	m.reviews.WithLabelValues(decision).Inc()
}

func (m *Metrics) Overrun(rule string) {
	if m == nil {
		return
	}
	m.overruns.WithLabelValues(rule).Inc()
}

func (m *Metrics) HTTPRequest(route, method string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
