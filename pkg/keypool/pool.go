package keypool

import (
	"log/slog"
	"sync"
	"time"
)

// Pool is the single authoritative collection of keys. It owns all
// structural mutation (add/remove/reweight/health transitions), the
// smooth-WRR scheduling state, and the cached total effective weight.
//
// All mutation, including selection, runs under one write lock; read-only
// queries share a read lock. The pool is therefore one linearizable unit:
// the total-weight cache can never be observed disagreeing with the
// member weights.
type Pool struct {
	mu sync.RWMutex

	// keys is ordered; order is irrelevant to weight fairness but breaks
	// selection ties deterministically.
	keys []*Key

	// totalEffectiveWeight caches the sum of effective weights over all
	// active keys. Recomputed synchronously on every mutation that can
	// change a key's effective weight or membership.
	totalEffectiveWeight int

	logger *slog.Logger

	// now is swapped out in tests.
	now func() time.Time
}

// New creates an empty pool.
func New() *Pool {
	return &Pool{
		logger: slog.Default().With("component", "keypool"),
		now:    time.Now,
	}
}

// NewFromKeys creates a pool pre-populated with the given keys.
// It fails on duplicate or invalid keys.
func NewFromKeys(keys []*Key) (*Pool, error) {
	p := New()
	for _, k := range keys {
		if err := p.AddKey(k); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// AddKey appends a key to the pool and recomputes the total weight.
// Duplicate IDs and negative weights are rejected.
func (p *Pool) AddKey(key *Key) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if key.ID == "" {
		return NewInvalidKeyError(key.ID, "empty id")
	}
	if key.Weight < 0 {
		return NewInvalidKeyError(key.ID, "negative weight")
	}
	if p.findLocked(key.ID) != nil {
		return NewDuplicateKeyError(key.ID)
	}

	// Normalize runtime state for keys built directly from config rather
	// than through NewKey.
	if key.WindowStart.IsZero() {
		now := p.now()
		key.WindowStart = now
		key.LastStateChange = now
		key.IsActive = true
		key.EffectiveWeight = key.Weight
	}

	p.keys = append(p.keys, key)
	p.recomputeTotalLocked()

	p.logger.Info("key added",
		"key_id", key.ID,
		"weight", key.Weight,
		"rate_limit_ceiling", key.RateLimitCeiling,
		"total_effective_weight", p.totalEffectiveWeight,
	)

	return nil
}

// RemoveKey removes a key by ID and recomputes the total weight.
func (p *Pool) RemoveKey(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, k := range p.keys {
		if k.ID == id {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			p.recomputeTotalLocked()

			p.logger.Info("key removed",
				"key_id", id,
				"total_effective_weight", p.totalEffectiveWeight,
			)
			return nil
		}
	}

	return NewKeyNotFoundError(id)
}

// UpdateWeight sets both the configured and effective weight of a key.
// An explicit operator reweight overrides any health-driven degradation.
// The total-weight cache is recomputed under the same critical section,
// so no intermediate state is observable.
func (p *Pool) UpdateWeight(id string, newWeight int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.updateWeightLocked(id, newWeight)
}

func (p *Pool) updateWeightLocked(id string, newWeight int) error {
	if newWeight < 0 {
		return NewInvalidKeyError(id, "negative weight")
	}

	key := p.findLocked(id)
	if key == nil {
		return NewKeyNotFoundError(id)
	}

	oldWeight := key.Weight
	key.Weight = newWeight
	key.EffectiveWeight = newWeight
	p.recomputeTotalLocked()

	p.logger.Info("key weight updated",
		"key_id", id,
		"old_weight", oldWeight,
		"new_weight", newWeight,
		"total_effective_weight", p.totalEffectiveWeight,
	)

	return nil
}

// BatchUpdateWeights applies several weight updates atomically: every
// referenced key must exist and every weight must be valid before any
// change is applied.
func (p *Pool) BatchUpdateWeights(updates map[string]int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, w := range updates {
		if p.findLocked(id) == nil {
			return NewKeyNotFoundError(id)
		}
		if w < 0 {
			return NewInvalidKeyError(id, "negative weight")
		}
	}

	for id, w := range updates {
		key := p.findLocked(id)
		key.Weight = w
		key.EffectiveWeight = w
	}
	p.recomputeTotalLocked()

	p.logger.Info("batch weight update applied",
		"keys", len(updates),
		"total_effective_weight", p.totalEffectiveWeight,
	)

	return nil
}

// MarkFailed records a failed request against a key. Every failure lowers
// the effective weight by a fixed decrement so degradation is gradual;
// crossing the consecutive-failure threshold deactivates the key.
func (p *Pool) MarkFailed(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := p.findLocked(id)
	if key == nil {
		return NewKeyNotFoundError(id)
	}

	key.FailureCount++
	if key.EffectiveWeight > 0 {
		key.EffectiveWeight -= failureWeightDecrement
		if key.EffectiveWeight < 0 {
			key.EffectiveWeight = 0
		}
	}

	if key.FailureCount >= FailureThreshold && key.IsActive {
		key.IsActive = false
		key.LastStateChange = p.now()
		p.logger.Warn("key deactivated after repeated failures",
			"key_id", id,
			"failure_count", key.FailureCount,
		)
	}

	p.recomputeTotalLocked()
	return nil
}

// MarkSuccess records a successful request: the failure counter resets,
// the key is reactivated, and its effective weight is restored to the
// configured weight.
func (p *Pool) MarkSuccess(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := p.findLocked(id)
	if key == nil {
		return NewKeyNotFoundError(id)
	}

	wasInactive := !key.IsActive
	key.FailureCount = 0
	key.EffectiveWeight = key.Weight
	if wasInactive {
		key.IsActive = true
		key.LastStateChange = p.now()
		p.logger.Info("key reactivated on success", "key_id", id)
	} else {
		key.IsActive = true
	}

	p.recomputeTotalLocked()
	return nil
}

// RefreshAvailability resets expired rate-limit windows and optimistically
// reactivates cooled-down keys. SelectNext calls this on every selection;
// it is exported for callers that want to force a refresh outside the
// request path.
func (p *Pool) RefreshAvailability() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshAvailabilityLocked()
}

func (p *Pool) refreshAvailabilityLocked() {
	now := p.now()

	for _, key := range p.keys {
		if now.Sub(key.WindowStart) > RateLimitWindow {
			key.CurrentRequests = 0
			key.WindowStart = now
		}

		// Blunt auto-recovery: nothing verifies the underlying fault is
		// fixed, only that the cool-down has elapsed. A retried key can
		// immediately fail again and re-deactivate.
		if !key.IsActive && key.FailureCount < FailureThreshold &&
			now.Sub(key.LastStateChange) >= RecoveryCoolDown {
			key.IsActive = true
			key.EffectiveWeight = key.Weight
			key.LastStateChange = now
			p.recomputeTotalLocked()
			p.logger.Info("key optimistically reactivated after cool-down",
				"key_id", key.ID,
				"failure_count", key.FailureCount,
			)
		}
	}
}

// SelectNext picks the next key using smooth weighted round robin and
// increments its usage counter. It returns a copy of the selected key so
// callers cannot mutate pool state, and nil when no key is eligible.
// Absence of a usable key is not an error; the proxy layer translates it
// into a service-unavailable condition.
func (p *Pool) SelectNext() *Key {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.refreshAvailabilityLocked()

	var eligible []*Key
	total := 0
	for _, k := range p.keys {
		if k.Eligible() {
			eligible = append(eligible, k)
			total += k.EffectiveWeight
		}
	}

	if len(eligible) == 0 || total <= 0 {
		return nil
	}

	var selected *Key
	for _, k := range eligible {
		k.CurrentWeight += k.EffectiveWeight
		// Strict > keeps ties resolved by pool order.
		if selected == nil || k.CurrentWeight > selected.CurrentWeight {
			selected = k
		}
	}

	selected.CurrentWeight -= total
	selected.CurrentRequests++

	return selected.clone()
}

// Keys returns a copy of every key in pool order.
func (p *Pool) Keys() []*Key {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*Key, 0, len(p.keys))
	for _, k := range p.keys {
		out = append(out, k.clone())
	}
	return out
}

// Weights returns the current configured weight of every key, keyed by
// ID. This is the map captured by audit snapshots.
func (p *Pool) Weights() map[string]int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	weights := make(map[string]int, len(p.keys))
	for _, k := range p.keys {
		weights[k.ID] = k.Weight
	}
	return weights
}

// CurrentWeight returns the configured weight of a single key.
func (p *Pool) CurrentWeight(id string) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	key := p.findLocked(id)
	if key == nil {
		return 0, NewKeyNotFoundError(id)
	}
	return key.Weight, nil
}

// TotalEffectiveWeight returns the cached sum of effective weights over
// all active keys.
func (p *Pool) TotalEffectiveWeight() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.totalEffectiveWeight
}

// findLocked returns the key with the given ID, or nil. Caller must hold
// the lock.
func (p *Pool) findLocked(id string) *Key {
	for _, k := range p.keys {
		if k.ID == id {
			return k
		}
	}
	return nil
}

// recomputeTotalLocked refreshes the total-weight cache. Inactive keys
// contribute nothing: deactivating a key removes exactly its effective
// weight from the total, and reactivation restores it. Caller must hold
// the write lock.
func (p *Pool) recomputeTotalLocked() {
	total := 0
	for _, k := range p.keys {
		if k.IsActive {
			total += k.EffectiveWeight
		}
	}
	p.totalEffectiveWeight = total
}
