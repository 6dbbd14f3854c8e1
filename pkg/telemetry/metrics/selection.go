package metrics

// RecordSelection counts a successful key selection.
func (c *Collector) RecordSelection(keyID string) {
	if !c.config.Enabled {
		return
	}
	c.selectionsTotal.WithLabelValues(keyID).Inc()
}

// RecordSelectionMiss counts a selection attempt with no eligible key.
func (c *Collector) RecordSelectionMiss() {
	if !c.config.Enabled {
		return
	}
	c.selectionMisses.Inc()
}

// RecordRateLimited counts a key skipped at its rate ceiling.
func (c *Collector) RecordRateLimited(keyID string) {
	if !c.config.Enabled {
		return
	}
	c.rateLimitedTotal.WithLabelValues(keyID).Inc()
}
