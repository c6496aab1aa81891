package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry       *prometheus.Registry
	apiRequests    *prometheus.CounterVec // provider api requests
	decisions      *prometheus.CounterVec // reconciliation decisions
	applyResults   *prometheus.CounterVec // record apply outcomes
	settingPatches *prometheus.CounterVec // zone setting writes
	authLogins     *prometheus.CounterVec // interactive logins
	runDuration    prometheus.Histogram   // time for a full provision run
}

func (m *Metrics) IncAPIRequest(operation string, success bool) {
	m.apiRequests.WithLabelValues(operation, boolToResult(success)).Inc()
}

func (m *Metrics) IncDecision(kind string) {
	if !isValidDecision(kind) {
		return
	}
	m.decisions.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncApplyResult(operation string, success bool) {
	m.applyResults.WithLabelValues(operation, boolToResult(success)).Inc()
}

func (m *Metrics) IncSettingPatch(setting string, success bool) {
	m.settingPatches.WithLabelValues(setting, boolToResult(success)).Inc()
}

func (m *Metrics) IncAuthLogin(success bool) {
	m.authLogins.WithLabelValues(boolToResult(success)).Inc()
}

func (m *Metrics) SetRunDuration(duration time.Duration) {
	m.runDuration.Observe(duration.Seconds())
}

func boolToResult(b bool) string {
	if b {
		return "success"
	}
	return "failure"
}

func isValidDecision(kind string) bool {
	switch kind {
	case "noop", "create", "update":
		return true
	}
	return false
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	namespace := "cf_zone_provision"

	m := &Metrics{
		registry: registry,

		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Total provider API requests",
		}, []string{"operation", "status"}),

		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_decisions_total",
			Help:      "Total reconciliation decisions by kind",
		}, []string{"decision"}),

		applyResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "apply_results_total",
			Help:      "Total record apply outcomes",
		}, []string{"operation", "status"}),

		settingPatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "setting_patches_total",
			Help:      "Total zone setting writes",
		}, []string{"setting", "status"}),

		authLogins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_logins_total",
			Help:      "Total interactive authorization attempts",
		}, []string{"status"}),

		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of provision runs in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(
		m.apiRequests,
		m.decisions,
		m.applyResults,
		m.settingPatches,
		m.authLogins,
		m.runDuration,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
