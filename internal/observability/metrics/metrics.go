package metrics

import "github.com/prometheus/client_golang/prometheus"

// SyncMetrics exposes counters/histograms for conversation sync passes.
type SyncMetrics struct {
	passesTotal   *prometheus.CounterVec
	newLeadsTotal *prometheus.CounterVec
	fetchFailures *prometheus.CounterVec
	passLatency   *prometheus.HistogramVec
	skippedTotal  *prometheus.CounterVec
}

func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	m := &SyncMetrics{
		passesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leaddesk",
			Subsystem: "sync",
			Name:      "passes_total",
			Help:      "Total reconciliation passes",
		}, []string{"mode", "outcome"}),
		newLeadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leaddesk",
			Subsystem: "sync",
			Name:      "new_leads_total",
			Help:      "Leads materialized from provider conversations",
		}, []string{"mode"}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leaddesk",
			Subsystem: "sync",
			Name:      "provider_fetch_failures_total",
			Help:      "Failed conversation list calls",
		}, []string{"mode"}),
		passLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "leaddesk",
			Subsystem: "sync",
			Name:      "pass_latency_seconds",
			Help:      "Latency of reconciliation passes",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		skippedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leaddesk",
			Subsystem: "sync",
			Name:      "skipped_total",
			Help:      "Passes skipped because of the freshness window or an in-flight pass",
		}, []string{"reason"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.passesTotal, m.newLeadsTotal, m.fetchFailures, m.passLatency, m.skippedTotal)
	return m
}

func (m *SyncMetrics) ObservePass(mode, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.passesTotal.WithLabelValues(mode, outcome).Inc()
	m.passLatency.WithLabelValues(mode).Observe(seconds)
}

func (m *SyncMetrics) AddNewLeads(mode string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.newLeadsTotal.WithLabelValues(mode).Add(float64(n))
}

func (m *SyncMetrics) ObserveFetchFailure(mode string) {
	if m == nil {
		return
	}
	m.fetchFailures.WithLabelValues(mode).Inc()
}

func (m *SyncMetrics) ObserveSkip(reason string) {
	if m == nil {
		return
	}
	m.skippedTotal.WithLabelValues(reason).Inc()
}
