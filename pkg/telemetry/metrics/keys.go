package metrics

// RecordFailure counts a reported request failure for a key.
func (c *Collector) RecordFailure(keyID string) {
	if !c.config.Enabled {
		return
	}
	c.keyFailuresTotal.WithLabelValues(keyID).Inc()
}

// UpdateKeyHealth sets the active gauge for a key.
func (c *Collector) UpdateKeyHealth(keyID string, active bool) {
	if !c.config.Enabled {
		return
	}
	v := 0.0
	if active {
		v = 1.0
	}
	c.keyActive.WithLabelValues(keyID).Set(v)
}

// UpdateEffectiveWeight sets the effective weight gauge for a key.
func (c *Collector) UpdateEffectiveWeight(keyID string, weight int) {
	if !c.config.Enabled {
		return
	}
	c.keyEffectiveWeight.WithLabelValues(keyID).Set(float64(weight))
}

// UpdateTotalEffectiveWeight sets the pool-wide weight gauge.
func (c *Collector) UpdateTotalEffectiveWeight(total int) {
	if !c.config.Enabled {
		return
	}
	c.totalWeight.Set(float64(total))
}

// RemoveKey drops all per-key series for a removed key so stale
// gauges do not linger in scrapes.
func (c *Collector) RemoveKey(keyID string) {
	if !c.config.Enabled {
		return
	}
	labels := map[string]string{"key_id": keyID}
	c.selectionsTotal.Delete(labels)
	c.rateLimitedTotal.Delete(labels)
	c.keyFailuresTotal.Delete(labels)
	c.keyActive.Delete(labels)
	c.keyEffectiveWeight.Delete(labels)
}
