package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the policy engine. A nil or
// disabled Metrics is a no-op, so instrumented code never has to check.
type Metrics struct {
	config MetricsConfig

	// Query metrics
	queriesTotal  *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	queryResults  *prometheus.HistogramVec

	// Rule metrics
	ruleChanges *prometheus.CounterVec
	policyRules *prometheus.GaugeVec

	// Datasource metrics
	pollsTotal   *prometheus.CounterVec
	pollDuration *prometheus.HistogramVec
	factsLoaded  *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return &Metrics{config: cfg}
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		config:   cfg,
		registry: registry,

		queriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Total number of policy queries evaluated",
			},
			[]string{"policy"},
		),
		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "Duration of policy query evaluation in seconds",
				Buckets:   buckets,
			},
			[]string{"policy"},
		),
		queryResults: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_results",
				Help:      "Number of derived facts per query",
				Buckets:   []float64{0, 1, 10, 100, 1000, 10000},
			},
			[]string{"policy"},
		),
		ruleChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rule_changes_total",
				Help:      "Total number of rule inserts and deletes",
			},
			[]string{"policy", "op"},
		),
		policyRules: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "policy_rules",
				Help:      "Current number of rules and facts per policy",
			},
			[]string{"policy"},
		),
		pollsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "datasource_polls_total",
				Help:      "Total number of datasource polls",
			},
			[]string{"datasource", "status"},
		),
		pollDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "datasource_poll_duration_seconds",
				Help:      "Duration of datasource polls in seconds",
				Buckets:   buckets,
			},
			[]string{"datasource"},
		),
		factsLoaded: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "datasource_facts",
				Help:      "Facts loaded from a datasource at the last poll",
			},
			[]string{"datasource"},
		),
	}

	registry.MustRegister(
		m.queriesTotal,
		m.queryDuration,
		m.queryResults,
		m.ruleChanges,
		m.policyRules,
		m.pollsTotal,
		m.pollDuration,
		m.factsLoaded,
	)
	return m
}

// enabled reports whether the collector records anything.
func (m *Metrics) enabled() bool {
	return m != nil && m.registry != nil
}

// ObserveQuery records one evaluated query.
func (m *Metrics) ObserveQuery(policy string, duration time.Duration, results int) {
	if !m.enabled() {
		return
	}
	m.queriesTotal.WithLabelValues(policy).Inc()
	m.queryDuration.WithLabelValues(policy).Observe(duration.Seconds())
	m.queryResults.WithLabelValues(policy).Observe(float64(results))
}

// RuleChange records a rule insert or delete.
func (m *Metrics) RuleChange(policy, op string) {
	if !m.enabled() {
		return
	}
	m.ruleChanges.WithLabelValues(policy, op).Inc()
}

// SetPolicyRules records the rule count of a policy.
func (m *Metrics) SetPolicyRules(policy string, n int) {
	if !m.enabled() {
		return
	}
	m.policyRules.WithLabelValues(policy).Set(float64(n))
}

// ObservePoll records one datasource poll.
func (m *Metrics) ObservePoll(datasource, status string, duration time.Duration, facts int) {
	if !m.enabled() {
		return
	}
	m.pollsTotal.WithLabelValues(datasource, status).Inc()
	m.pollDuration.WithLabelValues(datasource).Observe(duration.Seconds())
	if status == "ok" {
		m.factsLoaded.WithLabelValues(datasource).Set(float64(facts))
	}
}

// Handler returns the HTTP handler serving the metrics endpoint, or nil when
// metrics are disabled.
func (m *Metrics) Handler() http.Handler {
	if !m.enabled() {
		return nil
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
