package balancer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MAQSOODAWANhaha/gem-proxy/pkg/audit"
	"github.com/MAQSOODAWANhaha/gem-proxy/pkg/config"
	"github.com/MAQSOODAWANhaha/gem-proxy/pkg/keypool"
	"github.com/MAQSOODAWANhaha/gem-proxy/pkg/telemetry/metrics"
)

// Manager is the write path for the balancer. All configured-weight
// changes flow through it so every change reaches the audit log, and
// all selections flow through it so every selection reaches metrics.
type Manager struct {
	pool    *keypool.Pool
	log     *audit.Log
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewManager wires a pool, an audit log, and a metrics collector. A nil
// collector disables instrumentation.
func NewManager(pool *keypool.Pool, log *audit.Log, collector *metrics.Collector) *Manager {
	if collector == nil {
		collector = metrics.NewCollector(nil)
	}
	m := &Manager{
		pool:    pool,
		log:     log,
		metrics: collector,
		logger:  slog.Default().With("component", "balancer.manager"),
	}
	m.syncMetrics()
	return m
}

// Pool exposes the underlying key pool for read-only inspection.
func (m *Manager) Pool() *keypool.Pool {
	return m.pool
}

// AuditLog exposes the underlying audit log for queries and exports.
func (m *Manager) AuditLog() *audit.Log {
	return m.log
}

// Next selects the next key by smooth weighted round robin. It returns
// nil when no key is eligible.
func (m *Manager) Next() *keypool.Key {
	key := m.pool.SelectNext()
	if key == nil {
		m.metrics.RecordSelectionMiss()
		if m.metrics.Enabled() {
			for _, k := range m.pool.Keys() {
				if k.IsActive && k.EffectiveWeight > 0 && k.CurrentRequests >= k.RateLimitCeiling {
					m.metrics.RecordRateLimited(k.ID)
				}
			}
		}
		return nil
	}
	m.metrics.RecordSelection(key.ID)
	return key
}

// ReportSuccess records a successful upstream request for a key. The
// pool resets its failure state; no audit record is written because the
// configured weight is unchanged.
func (m *Manager) ReportSuccess(keyID string) error {
	if err := m.pool.MarkSuccess(keyID); err != nil {
		return err
	}
	m.syncMetrics()
	return nil
}

// ReportFailure records a failed upstream request for a key. The pool
// degrades the effective weight and may deactivate the key; the
// configured weight is unchanged so no audit record is written.
func (m *Manager) ReportFailure(keyID string) error {
	if err := m.pool.MarkFailed(keyID); err != nil {
		return err
	}
	m.metrics.RecordFailure(keyID)
	m.syncMetrics()
	return nil
}

// AddKey adds a key to the pool.
func (m *Manager) AddKey(key *keypool.Key) error {
	if err := m.pool.AddKey(key); err != nil {
		return err
	}
	m.syncMetrics()
	return nil
}

// RemoveKey removes a key from the pool and drops its metric series.
func (m *Manager) RemoveKey(keyID string) error {
	if err := m.pool.RemoveKey(keyID); err != nil {
		return err
	}
	m.metrics.RemoveKey(keyID)
	m.syncMetrics()
	return nil
}

// UpdateWeight changes one key's configured weight and records the
// change. The pool is updated first; if the audit append then fails the
// weight change stands and the error is returned so the caller knows
// the trail is incomplete.
func (m *Manager) UpdateWeight(ctx context.Context, keyID string, newWeight int, op audit.OperationType, source audit.ChangeSource, operator, reason string) (*audit.ChangeRecord, error) {
	oldWeight, err := m.pool.CurrentWeight(keyID)
	if err != nil {
		return nil, err
	}

	if err := m.pool.UpdateWeight(keyID, newWeight); err != nil {
		return nil, err
	}
	m.syncMetrics()

	record, err := m.log.RecordChange(ctx, &audit.Change{
		KeyID:     keyID,
		OldWeight: oldWeight,
		NewWeight: newWeight,
		Operation: op,
		Source:    source,
		Operator:  operator,
		Reason:    reason,
	})
	if err != nil {
		m.logger.Error("weight change applied but audit append failed",
			"key_id", keyID,
			"new_weight", newWeight,
			"error", err,
		)
		return nil, fmt.Errorf("weight applied, audit append failed: %w", err)
	}
	m.metrics.RecordAuditRecord(string(record.Operation), string(record.Source))
	return record, nil
}

// BatchUpdateWeights changes several keys atomically and records the
// changes under a shared batch ID. The pool apply is all-or-nothing; as
// with UpdateWeight, an audit failure after a successful apply does not
// roll the weights back.
func (m *Manager) BatchUpdateWeights(ctx context.Context, updates map[string]int, op audit.OperationType, source audit.ChangeSource, operator, reason string) ([]*audit.ChangeRecord, error) {
	if len(updates) == 0 {
		return nil, nil
	}

	oldWeights := make(map[string]int, len(updates))
	for keyID := range updates {
		w, err := m.pool.CurrentWeight(keyID)
		if err != nil {
			return nil, err
		}
		oldWeights[keyID] = w
	}

	if err := m.pool.BatchUpdateWeights(updates); err != nil {
		return nil, err
	}
	m.syncMetrics()

	changes := make([]*audit.Change, 0, len(updates))
	for keyID, newWeight := range updates {
		changes = append(changes, &audit.Change{
			KeyID:     keyID,
			OldWeight: oldWeights[keyID],
			NewWeight: newWeight,
			Operation: op,
			Source:    source,
			Operator:  operator,
			Reason:    reason,
		})
	}
	records, err := m.log.RecordBatch(ctx, changes)
	if err != nil {
		m.logger.Error("batch weight change applied but audit append failed",
			"keys", len(updates),
			"error", err,
		)
		return records, fmt.Errorf("weights applied, audit append failed: %w", err)
	}
	for _, record := range records {
		m.metrics.RecordAuditRecord(string(record.Operation), string(record.Source))
	}
	return records, nil
}

// ApplyPreset applies a named weight set as one audited batch. Preset
// entries for keys not in the pool are skipped so stale presets stay
// usable after key removal.
func (m *Manager) ApplyPreset(ctx context.Context, name string, weights map[string]int, operator string) ([]*audit.ChangeRecord, error) {
	updates := make(map[string]int, len(weights))
	skipped := 0
	for keyID, w := range weights {
		if _, err := m.pool.CurrentWeight(keyID); err != nil {
			skipped++
			continue
		}
		updates[keyID] = w
	}
	if skipped > 0 {
		m.logger.Warn("preset references unknown keys",
			"preset", name,
			"skipped", skipped,
		)
	}
	if len(updates) == 0 {
		return nil, fmt.Errorf("preset %q matches no key in the pool", name)
	}
	return m.BatchUpdateWeights(ctx, updates, audit.OperationBatch, audit.SourceAPI, operator, "apply preset "+name)
}

// CreateSnapshot captures the pool's current configured weights as a
// named restore point.
func (m *Manager) CreateSnapshot(ctx context.Context, description, operator string) (*audit.Snapshot, error) {
	return m.log.CreateSnapshot(ctx, m.pool.Weights(), description, operator)
}

// Rollback restores the configured weights captured in a snapshot. The
// audit log computes the target weight set and records one rollback
// change per key; the manager then applies the set to the pool. Keys in
// the snapshot that no longer exist are skipped.
func (m *Manager) Rollback(ctx context.Context, snapshotID, operator, reason string) (map[string]int, error) {
	target, err := m.log.RollbackToSnapshot(ctx, snapshotID, operator, reason, func(keyID string) (int, bool) {
		w, err := m.pool.CurrentWeight(keyID)
		return w, err == nil
	})
	if err != nil {
		return nil, err
	}
	if len(target) == 0 {
		m.logger.Warn("rollback target is empty, no snapshot key exists in the pool", "snapshot_id", snapshotID)
		return target, nil
	}

	if err := m.pool.BatchUpdateWeights(target); err != nil {
		return nil, fmt.Errorf("rollback recorded but pool apply failed: %w", err)
	}
	m.syncMetrics()

	for range target {
		m.metrics.RecordAuditRecord(string(audit.OperationRollback), string(audit.SourceAPI))
	}
	m.logger.Info("rolled back to snapshot",
		"snapshot_id", snapshotID,
		"keys", len(target),
		"operator", operator,
	)
	return target, nil
}

// ApplyConfig reconciles the pool against a loaded configuration: new
// keys are added, removed keys are dropped, and weight differences are
// applied and audited as automatic changes from the config file. Secret
// rotations for existing keys are not applied in place; remove and
// re-add the key to rotate its credential.
func (m *Manager) ApplyConfig(ctx context.Context, cfg *config.Config, operator string) error {
	desired := make(map[string]config.KeyConfig, len(cfg.Keys))
	for _, kc := range cfg.Keys {
		desired[kc.ID] = kc
	}

	updates := make(map[string]int)
	for _, key := range m.pool.Keys() {
		kc, ok := desired[key.ID]
		if !ok {
			if err := m.RemoveKey(key.ID); err != nil {
				return err
			}
			m.logger.Info("key removed by config reload", "key_id", key.ID)
			continue
		}
		if kc.Weight != key.Weight {
			updates[key.ID] = kc.Weight
		}
		delete(desired, key.ID)
	}

	for id, kc := range desired {
		key := keypool.NewKey(kc.ID, kc.Secret, kc.Weight, kc.MaxRequestsPerMinute)
		if err := m.AddKey(key); err != nil {
			return err
		}
		m.logger.Info("key added by config reload", "key_id", id)
	}

	if len(updates) == 0 {
		return nil
	}
	_, err := m.BatchUpdateWeights(ctx, updates, audit.OperationAutomatic, audit.SourceConfigFile, operator, "configuration reload")
	return err
}

// Stats returns the pool's aggregate statistics.
func (m *Manager) Stats() keypool.Stats {
	return m.pool.Stats()
}

// syncMetrics pushes the pool's per-key health and weight state into
// the collector.
func (m *Manager) syncMetrics() {
	if !m.metrics.Enabled() {
		return
	}
	for _, key := range m.pool.Keys() {
		m.metrics.UpdateKeyHealth(key.ID, key.IsActive)
		m.metrics.UpdateEffectiveWeight(key.ID, key.EffectiveWeight)
	}
	m.metrics.UpdateTotalEffectiveWeight(m.pool.TotalEffectiveWeight())
}
