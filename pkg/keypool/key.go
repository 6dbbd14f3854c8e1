package keypool

import "time"

const (
	// FailureThreshold is the number of consecutive failures after which a
	// key is deactivated. The legacy design used both 3 and 5 at different
	// call sites; the pool standardizes on 3.
	FailureThreshold = 3

	// failureWeightDecrement is how much a key's effective weight is
	// lowered on each recorded failure. Degradation is gradual rather
	// than a hard cutover; MarkSuccess restores the configured weight.
	failureWeightDecrement = 1

	// RateLimitWindow is the rolling interval over which a key's request
	// count is capped by its per-minute ceiling.
	RateLimitWindow = 60 * time.Second

	// RecoveryCoolDown is how long a deactivated key waits before the
	// pool optimistically retries it. The retry does not verify the
	// underlying fault is fixed, only that time has passed.
	RecoveryCoolDown = 5 * time.Minute
)

// Key is the atomic unit of load balancing: one upstream credential with
// its configured share of traffic and its runtime health state.
type Key struct {
	// ID is the opaque unique identifier, stable across the key's lifetime.
	ID string `json:"id" yaml:"id"`

	// Secret is the credential material sent to the upstream. It is never
	// logged and never serialized into audit records or snapshots.
	Secret string `json:"-" yaml:"-"`

	// Weight is the operator-configured fair share. Non-negative.
	Weight int `json:"weight" yaml:"weight"`

	// EffectiveWeight is the weight the scheduler actually uses. It equals
	// Weight while the key is healthy, is lowered on repeated failure, and
	// is restored to Weight on success.
	EffectiveWeight int `json:"effective_weight" yaml:"-"`

	// CurrentWeight is the smooth-WRR accumulator. It is meaningless
	// outside SelectNext and is owned exclusively by the pool.
	CurrentWeight int `json:"-" yaml:"-"`

	// RateLimitCeiling is the maximum number of requests accepted per
	// rolling 60-second window.
	RateLimitCeiling int `json:"rate_limit_ceiling" yaml:"max_requests_per_minute"`

	// CurrentRequests counts requests accepted in the current window.
	CurrentRequests int `json:"current_requests" yaml:"-"`

	// WindowStart is when the current rate-limit window began.
	WindowStart time.Time `json:"window_start" yaml:"-"`

	// FailureCount counts consecutive failures since the last success.
	FailureCount int `json:"failure_count" yaml:"-"`

	// IsActive is the availability flag. Cleared when FailureCount crosses
	// the threshold, restored on success or after the recovery cool-down.
	IsActive bool `json:"is_active" yaml:"-"`

	// LastStateChange is when the key last transitioned between active and
	// inactive. The recovery cool-down is measured from here.
	LastStateChange time.Time `json:"last_state_change" yaml:"-"`
}

// NewKey creates an active key with its effective weight initialized to
// the configured weight and a fresh rate-limit window.
func NewKey(id, secret string, weight, rateLimitCeiling int) *Key {
	now := time.Now()
	return &Key{
		ID:               id,
		Secret:           secret,
		Weight:           weight,
		EffectiveWeight:  weight,
		RateLimitCeiling: rateLimitCeiling,
		WindowStart:      now,
		IsActive:         true,
		LastStateChange:  now,
	}
}

// Eligible reports whether the key may be handed out by the scheduler:
// it must be active, carry schedulable weight, and have request budget
// left in the current window.
func (k *Key) Eligible() bool {
	return k.IsActive && k.EffectiveWeight > 0 && k.CurrentRequests < k.RateLimitCeiling
}

// clone returns a copy of the key. Callers of SelectNext and Keys receive
// clones so pool state cannot be mutated through the returned value.
func (k *Key) clone() *Key {
	dup := *k
	return &dup
}
