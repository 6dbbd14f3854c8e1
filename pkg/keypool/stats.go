package keypool

// Stats is a point-in-time summary of the pool. It is derived under a
// read lock and never mutates scheduling state.
type Stats struct {
	// TotalEffectiveWeight is the cached sum of effective weights over
	// active keys.
	TotalEffectiveWeight int `json:"total_effective_weight"`

	// ActiveKeys is the number of keys currently marked active.
	ActiveKeys int `json:"active_keys"`

	// TotalKeys is the number of keys in the pool, active or not.
	TotalKeys int `json:"total_keys"`

	// TotalRequests is the sum of per-key request counters for the
	// current rate-limit windows.
	TotalRequests int `json:"total_requests"`

	// FailedKeys is the number of keys at or past the failure threshold.
	FailedKeys int `json:"failed_keys"`

	// Keys holds the per-key breakdown in pool order.
	Keys []KeyStats `json:"keys"`
}

// KeyStats is the per-key slice of Stats.
type KeyStats struct {
	ID              string  `json:"id"`
	Weight          int     `json:"weight"`
	EffectiveWeight int     `json:"effective_weight"`
	Percentage      float64 `json:"percentage"`
	CurrentRequests int     `json:"current_requests"`
	FailureCount    int     `json:"failure_count"`
	IsActive        bool    `json:"is_active"`
}

// Stats returns the current pool summary.
func (p *Pool) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := Stats{
		TotalEffectiveWeight: p.totalEffectiveWeight,
		TotalKeys:            len(p.keys),
		Keys:                 make([]KeyStats, 0, len(p.keys)),
	}

	for _, k := range p.keys {
		if k.IsActive {
			stats.ActiveKeys++
		}
		if k.FailureCount >= FailureThreshold {
			stats.FailedKeys++
		}
		stats.TotalRequests += k.CurrentRequests

		pct := 0.0
		if p.totalEffectiveWeight > 0 && k.IsActive {
			pct = float64(k.EffectiveWeight) / float64(p.totalEffectiveWeight) * 100.0
		}

		stats.Keys = append(stats.Keys, KeyStats{
			ID:              k.ID,
			Weight:          k.Weight,
			EffectiveWeight: k.EffectiveWeight,
			Percentage:      pct,
			CurrentRequests: k.CurrentRequests,
			FailureCount:    k.FailureCount,
			IsActive:        k.IsActive,
		})
	}

	return stats
}
