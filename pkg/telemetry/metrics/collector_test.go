package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/MAQSOODAWANhaha/gem-proxy/pkg/config"
)

func newTestCollector() *Collector {
	return NewCollector(&config.MetricsConfig{
		Enabled:   true,
		Namespace: "gemproxy",
		Subsystem: "balancer",
	})
}

func TestCollector_Selections(t *testing.T) {
	c := newTestCollector()

	c.RecordSelection("key-1")
	c.RecordSelection("key-1")
	c.RecordSelection("key-2")
	c.RecordSelectionMiss()
	c.RecordRateLimited("key-2")

	if got := testutil.ToFloat64(c.selectionsTotal.WithLabelValues("key-1")); got != 2 {
		t.Errorf("selections key-1 = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.selectionsTotal.WithLabelValues("key-2")); got != 1 {
		t.Errorf("selections key-2 = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.selectionMisses); got != 1 {
		t.Errorf("selection misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.rateLimitedTotal.WithLabelValues("key-2")); got != 1 {
		t.Errorf("rate limited key-2 = %v, want 1", got)
	}
}

func TestCollector_KeyGauges(t *testing.T) {
	c := newTestCollector()

	c.UpdateKeyHealth("key-1", true)
	c.UpdateEffectiveWeight("key-1", 250)
	c.UpdateTotalEffectiveWeight(600)
	c.RecordFailure("key-1")

	if got := testutil.ToFloat64(c.keyActive.WithLabelValues("key-1")); got != 1 {
		t.Errorf("key_active = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.keyEffectiveWeight.WithLabelValues("key-1")); got != 250 {
		t.Errorf("key_effective_weight = %v, want 250", got)
	}
	if got := testutil.ToFloat64(c.totalWeight); got != 600 {
		t.Errorf("total_effective_weight = %v, want 600", got)
	}
	if got := testutil.ToFloat64(c.keyFailuresTotal.WithLabelValues("key-1")); got != 1 {
		t.Errorf("key_failures_total = %v, want 1", got)
	}

	c.UpdateKeyHealth("key-1", false)
	if got := testutil.ToFloat64(c.keyActive.WithLabelValues("key-1")); got != 0 {
		t.Errorf("key_active after deactivation = %v, want 0", got)
	}
}

func TestCollector_RemoveKey(t *testing.T) {
	c := newTestCollector()

	c.RecordSelection("key-1")
	c.UpdateKeyHealth("key-1", true)
	c.RemoveKey("key-1")

	if n := testutil.CollectAndCount(c.keyActive); n != 0 {
		t.Errorf("key_active series after removal = %d, want 0", n)
	}
	if n := testutil.CollectAndCount(c.selectionsTotal); n != 0 {
		t.Errorf("selections series after removal = %d, want 0", n)
	}
}

func TestCollector_Disabled(t *testing.T) {
	c := NewCollector(&config.MetricsConfig{Enabled: false})

	// None of these may panic on nil metric families.
	c.RecordSelection("key-1")
	c.RecordSelectionMiss()
	c.RecordRateLimited("key-1")
	c.RecordFailure("key-1")
	c.UpdateKeyHealth("key-1", true)
	c.UpdateEffectiveWeight("key-1", 100)
	c.UpdateTotalEffectiveWeight(100)
	c.RecordAuditRecord("manual", "api")
	c.RemoveKey("key-1")

	if c.Enabled() {
		t.Error("Enabled() = true for disabled config")
	}
}

func TestCollector_Handler(t *testing.T) {
	c := newTestCollector()
	c.RecordSelection("key-1")
	c.RecordAuditRecord("manual", "web_ui")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "gemproxy_balancer_selections_total") {
		t.Errorf("exposition missing selections metric:\n%s", body)
	}
	if !strings.Contains(body, `gemproxy_balancer_audit_records_total{operation="manual",source="web_ui"} 1`) {
		t.Errorf("exposition missing audit metric:\n%s", body)
	}
}
