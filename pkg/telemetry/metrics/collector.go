package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/MAQSOODAWANhaha/gem-proxy/pkg/config"
)

// Collector owns the balancer metric families and their registry.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	selectionsTotal    *prometheus.CounterVec
	selectionMisses    prometheus.Counter
	rateLimitedTotal   *prometheus.CounterVec
	keyFailuresTotal   *prometheus.CounterVec
	keyActive          *prometheus.GaugeVec
	keyEffectiveWeight *prometheus.GaugeVec
	totalWeight        prometheus.Gauge
	auditRecordsTotal  *prometheus.CounterVec
}

// NewCollector builds a Collector from cfg. A nil cfg or cfg.Enabled
// set to false yields a collector whose methods do nothing.
func NewCollector(cfg *config.MetricsConfig) *Collector {
	if cfg == nil {
		cfg = &config.MetricsConfig{}
	}

	c := &Collector{
		config:   cfg,
		registry: prometheus.NewRegistry(),
	}
	if !cfg.Enabled {
		return c
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = config.DefaultMetricsNamespace
	}
	subsystem := cfg.Subsystem
	if subsystem == "" {
		subsystem = config.DefaultMetricsSubsystem
	}

	c.selectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "selections_total",
			Help:      "Total key selections, by key.",
		},
		[]string{"key_id"},
	)

	c.selectionMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "selection_misses_total",
			Help:      "Selections that found no eligible key.",
		},
	)

	c.rateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rate_limited_total",
			Help:      "Selections skipped because a key hit its rate ceiling.",
		},
		[]string{"key_id"},
	)

	c.keyFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "key_failures_total",
			Help:      "Reported request failures, by key.",
		},
		[]string{"key_id"},
	)

	c.keyActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "key_active",
			Help:      "Whether a key is active (1) or deactivated (0).",
		},
		[]string{"key_id"},
	)

	c.keyEffectiveWeight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "key_effective_weight",
			Help:      "Current effective weight, by key.",
		},
		[]string{"key_id"},
	)

	c.totalWeight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "total_effective_weight",
			Help:      "Sum of effective weights across active keys.",
		},
	)

	c.auditRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "audit_records_total",
			Help:      "Audit records written, by operation and source.",
		},
		[]string{"operation", "source"},
	)

	c.registry.MustRegister(
		c.selectionsTotal,
		c.selectionMisses,
		c.rateLimitedTotal,
		c.keyFailuresTotal,
		c.keyActive,
		c.keyEffectiveWeight,
		c.totalWeight,
		c.auditRecordsTotal,
	)

	return c
}

// Enabled reports whether metric collection is active.
func (c *Collector) Enabled() bool {
	return c.config.Enabled
}

// Registry returns the collector's registry for scraping or testing.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
