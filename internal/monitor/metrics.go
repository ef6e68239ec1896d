package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the process-wide counters/gauges scraped at GET /metrics,
// giving the supervisor's per-account status view (§4.5) a scrapeable form.
type Metrics struct {
	BreachesTotal   *prometheus.CounterVec
	DispatchDropped *prometheus.CounterVec
	AccountState    *prometheus.GaugeVec
	SnapshotErrors  *prometheus.CounterVec
	APIRequests     *prometheus.CounterVec
	APILatency      *prometheus.HistogramVec
}

// NewMetrics registers this system's metrics against reg. Pass
// prometheus.NewRegistry() in tests to avoid collisions with the default
// global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BreachesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_breaches_total",
			Help: "Breaches emitted by the evaluator, by account and breach code.",
		}, []string{"account", "code", "level"}),
		DispatchDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_notifier_dropped_total",
			Help: "Dispatch jobs dropped by a sink's bounded queue on overflow.",
		}, []string{"account"}),
		AccountState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "compliance_account_state",
			Help: "Current monitor state for an account (1 = current state, 0 otherwise).",
		}, []string{"account", "state"}),
		SnapshotErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_snapshot_errors_total",
			Help: "Adapter snapshot fetch errors, by account.",
		}, []string{"account"}),
		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_api_requests_total",
			Help: "Review API requests, by route and status code.",
		}, []string{"route", "status"}),
		APILatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "compliance_api_request_duration_seconds",
			Help: "Review API request latency, by route.",
		}, []string{"route"}),
	}
	reg.MustRegister(m.BreachesTotal, m.DispatchDropped, m.AccountState, m.SnapshotErrors, m.APIRequests, m.APILatency)
	return m
}

// setState zeroes every other known state gauge for the account and sets
// the current one to 1, so a Prometheus query for compliance_account_state
// == 1 always names exactly one state per account.
func (m *Metrics) setState(account string, s State) {
	for _, other := range []State{StateConnecting, StateObserving, StateReconnecting, StateFailed, StateStopped} {
		v := 0.0
		if other == s {
			v = 1.0
		}
		m.AccountState.WithLabelValues(account, string(other)).Set(v)
	}
}
