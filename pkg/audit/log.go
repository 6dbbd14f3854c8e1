package audit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Config contains configuration for the audit log.
type Config struct {
	// MaxRecords is the maximum number of change records to retain.
	// When exceeded, the oldest records are trimmed. 0 disables
	// count-based retention.
	// Default: 10000
	MaxRecords int

	// MaxAgeDays removes records older than this many days.
	// 0 disables age-based retention.
	// Default: 90
	MaxAgeDays int

	// MaxSnapshots bounds the number of retained snapshots. When a new
	// snapshot would exceed the bound, the oldest snapshot is deleted.
	// Default: 50
	MaxSnapshots int
}

// DefaultConfig returns the default audit log configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxRecords:   10000,
		MaxAgeDays:   90,
		MaxSnapshots: 50,
	}
}

// Change describes a weight mutation to be recorded. The log assigns
// the record ID, version, and timestamp.
type Change struct {
	KeyID     string
	OldWeight int
	NewWeight int
	Operation OperationType
	Source    ChangeSource
	Operator  string
	Reason    string
	BatchID   string
	Metadata  map[string]string
}

// Log is the append-only audit log. It assigns globally increasing
// versions, persists records through a Storage backend, and provides
// queries, statistics, snapshots, and rollback computation.
//
// Log is safe for concurrent use.
type Log struct {
	storage Storage
	config  *Config
	logger  *slog.Logger

	mu      sync.Mutex
	version int64

	now func() time.Time
}

// NewLog creates an audit log on top of the provided storage backend.
// The version counter is seeded from the highest version already
// stored, so restarts continue the sequence instead of restarting it.
func NewLog(storage Storage, config *Config) (*Log, error) {
	if config == nil {
		config = DefaultConfig()
	}

	l := &Log{
		storage: storage,
		config:  config,
		logger:  slog.Default().With("component", "audit.log"),
		now:     time.Now,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	max, err := storage.MaxVersion(ctx)
	if err != nil {
		return nil, NewStorageError("", "max_version", err)
	}
	l.version = max

	l.logger.Info("audit log initialized",
		"seed_version", max,
		"max_records", config.MaxRecords,
		"max_snapshots", config.MaxSnapshots,
	)

	return l, nil
}

// Version returns the version of the most recent record, or 0 when the
// log is empty.
func (l *Log) Version() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.version
}

// RecordChange appends one change record and returns it. The returned
// record carries the assigned ID, version, and timestamp.
//
// Retention pruning runs best-effort after a successful append; a
// pruning failure is logged and never surfaces to the caller.
func (l *Log) RecordChange(ctx context.Context, change *Change) (*ChangeRecord, error) {
	if err := validateChange(change); err != nil {
		return nil, NewRecordError("", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var metadata map[string]string
	if len(change.Metadata) > 0 {
		metadata = make(map[string]string, len(change.Metadata))
		for k, v := range change.Metadata {
			metadata[k] = v
		}
	}

	record := &ChangeRecord{
		ID:        uuid.New().String(),
		Version:   l.version + 1,
		Timestamp: l.now(),
		KeyID:     change.KeyID,
		OldWeight: change.OldWeight,
		NewWeight: change.NewWeight,
		Operation: change.Operation,
		Source:    change.Source,
		Operator:  change.Operator,
		Reason:    change.Reason,
		BatchID:   change.BatchID,
		Metadata:  metadata,
	}

	if err := l.storage.AppendRecord(ctx, record); err != nil {
		return nil, NewRecordError(record.ID, err)
	}
	l.version = record.Version

	l.logger.Info("change recorded",
		"record_id", record.ID,
		"version", record.Version,
		"key_id", record.KeyID,
		"old_weight", record.OldWeight,
		"new_weight", record.NewWeight,
		"operation", record.Operation,
		"source", record.Source,
	)

	l.pruneLocked(ctx)

	return record, nil
}

// RecordBatch appends one record per change, all sharing a freshly
// generated batch ID. Changes with an empty operation default to Batch.
// Appending stops at the first storage failure; records already
// appended stay in the log.
func (l *Log) RecordBatch(ctx context.Context, changes []*Change) ([]*ChangeRecord, error) {
	if len(changes) == 0 {
		return nil, nil
	}

	batchID := uuid.New().String()
	records := make([]*ChangeRecord, 0, len(changes))
	for _, change := range changes {
		c := *change
		c.BatchID = batchID
		if c.Operation == "" {
			c.Operation = OperationBatch
		}
		record, err := l.RecordChange(ctx, &c)
		if err != nil {
			return records, err
		}
		records = append(records, record)
	}
	return records, nil
}

// Query retrieves change records matching the filters.
func (l *Log) Query(ctx context.Context, query *Query) ([]*ChangeRecord, error) {
	if query == nil {
		query = &Query{}
	}
	if err := ValidateQuery(query); err != nil {
		return nil, err
	}
	records, err := l.storage.QueryRecords(ctx, query)
	if err != nil {
		return nil, NewQueryError(query, err)
	}
	return records, nil
}

// Count returns the number of records matching the filters.
func (l *Log) Count(ctx context.Context, query *Query) (int64, error) {
	if query == nil {
		query = &Query{}
	}
	if err := ValidateQuery(query); err != nil {
		return 0, err
	}
	n, err := l.storage.CountRecords(ctx, query)
	if err != nil {
		return 0, NewQueryError(query, err)
	}
	return n, nil
}

// WeightChangeTrend returns one key's changes over the trailing days in
// ascending version order, so the slice reads as the weight's history.
// A non-positive window covers the whole log.
func (l *Log) WeightChangeTrend(ctx context.Context, keyID string, days int) ([]*ChangeRecord, error) {
	if keyID == "" {
		return nil, NewQueryError(nil, fmt.Errorf("key_id is required"))
	}

	query := &Query{
		KeyID:     keyID,
		SortOrder: "asc",
	}
	if days > 0 {
		start := l.now().AddDate(0, 0, -days)
		query.StartTime = &start
	}
	return l.Query(ctx, query)
}

// KeyChangeCount pairs a key ID with its change count.
type KeyChangeCount struct {
	KeyID string `json:"key_id"`
	Count int64  `json:"count"`
}

// Statistics aggregates change activity over a trailing window.
type Statistics struct {
	WindowDays      int                     `json:"window_days"`
	TotalChanges    int64                   `json:"total_changes"`
	OperationCounts map[OperationType]int64 `json:"operation_counts"`
	SourceCounts    map[ChangeSource]int64  `json:"source_counts"`
	OperatorCounts  map[string]int64        `json:"operator_counts"`
	MostChangedKeys []KeyChangeCount        `json:"most_changed_keys"` // Top 10
	HourlyFrequency [24]int64               `json:"hourly_frequency"`  // By hour of day
}

// Statistics computes aggregate change statistics over the trailing
// windowDays days. A non-positive window covers the whole log.
func (l *Log) Statistics(ctx context.Context, windowDays int) (*Statistics, error) {
	query := &Query{}
	if windowDays > 0 {
		start := l.now().AddDate(0, 0, -windowDays)
		query.StartTime = &start
	}

	records, err := l.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	stats := &Statistics{
		WindowDays:      windowDays,
		TotalChanges:    int64(len(records)),
		OperationCounts: make(map[OperationType]int64),
		SourceCounts:    make(map[ChangeSource]int64),
		OperatorCounts:  make(map[string]int64),
	}

	keyCounts := make(map[string]int64)
	for _, record := range records {
		stats.OperationCounts[record.Operation]++
		stats.SourceCounts[record.Source]++
		stats.OperatorCounts[record.Operator]++
		keyCounts[record.KeyID]++
		stats.HourlyFrequency[record.Timestamp.Hour()]++
	}

	for keyID, count := range keyCounts {
		stats.MostChangedKeys = append(stats.MostChangedKeys, KeyChangeCount{KeyID: keyID, Count: count})
	}
	sort.Slice(stats.MostChangedKeys, func(i, j int) bool {
		if stats.MostChangedKeys[i].Count != stats.MostChangedKeys[j].Count {
			return stats.MostChangedKeys[i].Count > stats.MostChangedKeys[j].Count
		}
		return stats.MostChangedKeys[i].KeyID < stats.MostChangedKeys[j].KeyID
	})
	if len(stats.MostChangedKeys) > 10 {
		stats.MostChangedKeys = stats.MostChangedKeys[:10]
	}

	return stats, nil
}

// CreateSnapshot persists the provided weight set as a new snapshot.
// When the snapshot count would exceed the configured bound, the oldest
// snapshot is evicted first.
func (l *Log) CreateSnapshot(ctx context.Context, weights map[string]int, description, operator string) (*Snapshot, error) {
	if len(weights) == 0 {
		return nil, NewRecordError("", fmt.Errorf("snapshot requires at least one key"))
	}

	copied := make(map[string]int, len(weights))
	for id, w := range weights {
		copied[id] = w
	}

	snapshot := &Snapshot{
		ID:          uuid.New().String(),
		Timestamp:   l.now(),
		Version:     l.Version(),
		Weights:     copied,
		Description: description,
		Operator:    operator,
	}

	if l.config.MaxSnapshots > 0 {
		existing, err := l.storage.ListSnapshots(ctx)
		if err != nil {
			return nil, NewStorageError("", "list_snapshots", err)
		}
		for len(existing) >= l.config.MaxSnapshots {
			oldest := existing[0]
			if err := l.storage.DeleteSnapshot(ctx, oldest.ID); err != nil {
				return nil, NewStorageError("", "delete_snapshot", err)
			}
			l.logger.Info("evicted oldest snapshot",
				"snapshot_id", oldest.ID,
				"taken_at", oldest.Timestamp,
			)
			existing = existing[1:]
		}
	}

	if err := l.storage.PutSnapshot(ctx, snapshot); err != nil {
		return nil, NewStorageError("", "put_snapshot", err)
	}

	l.logger.Info("snapshot created",
		"snapshot_id", snapshot.ID,
		"keys", len(snapshot.Weights),
		"version", snapshot.Version,
	)

	return snapshot, nil
}

// Snapshots returns all retained snapshots, oldest first.
func (l *Log) Snapshots(ctx context.Context) ([]*Snapshot, error) {
	snapshots, err := l.storage.ListSnapshots(ctx)
	if err != nil {
		return nil, NewStorageError("", "list_snapshots", err)
	}
	return snapshots, nil
}

// GetSnapshot retrieves one snapshot by ID.
func (l *Log) GetSnapshot(ctx context.Context, id string) (*Snapshot, error) {
	snapshot, err := l.storage.GetSnapshot(ctx, id)
	if err != nil {
		return nil, NewStorageError("", "get_snapshot", err)
	}
	if snapshot == nil {
		return nil, NewSnapshotNotFoundError(id)
	}
	return snapshot, nil
}

// RollbackToSnapshot computes the weight set that restores the given
// snapshot and records one Rollback change per key, all under a shared
// batch ID. Each record's metadata names the snapshot it replayed, so
// the history stays traceable even after the snapshot itself is
// evicted. The currentWeight lookup supplies each key's live weight
// for the OldWeight field; keys the lookup no longer knows are skipped.
//
// The returned map is the target weight set. Applying it to the pool is
// the caller's responsibility.
func (l *Log) RollbackToSnapshot(ctx context.Context, snapshotID, operator, reason string, currentWeight func(keyID string) (int, bool)) (map[string]int, error) {
	snapshot, err := l.GetSnapshot(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	if currentWeight == nil {
		return nil, NewRecordError("", fmt.Errorf("current weight lookup is required"))
	}

	// Deterministic replay order.
	keyIDs := make([]string, 0, len(snapshot.Weights))
	for id := range snapshot.Weights {
		keyIDs = append(keyIDs, id)
	}
	sort.Strings(keyIDs)

	batchID := uuid.New().String()
	target := make(map[string]int, len(keyIDs))
	skipped := 0

	for _, keyID := range keyIDs {
		old, ok := currentWeight(keyID)
		if !ok {
			skipped++
			continue
		}
		newWeight := snapshot.Weights[keyID]
		_, err := l.RecordChange(ctx, &Change{
			KeyID:     keyID,
			OldWeight: old,
			NewWeight: newWeight,
			Operation: OperationRollback,
			Source:    SourceAPI,
			Operator:  operator,
			Reason:    reason,
			BatchID:   batchID,
			Metadata: map[string]string{
				MetadataSnapshotID:     snapshotID,
				MetadataRollbackReason: reason,
			},
		})
		if err != nil {
			return nil, err
		}
		target[keyID] = newWeight
	}

	l.logger.Info("rollback computed",
		"snapshot_id", snapshotID,
		"batch_id", batchID,
		"keys_restored", len(target),
		"keys_skipped", skipped,
	)

	return target, nil
}

// ExportRecords writes the records matching the query through the
// provided exporter.
func (l *Log) ExportRecords(ctx context.Context, query *Query, exporter Exporter, w io.Writer) error {
	records, err := l.Query(ctx, query)
	if err != nil {
		return err
	}
	return exporter.Export(ctx, records, w)
}

// pruneLocked enforces retention after an append. Failures are logged
// only; retention must never fail a recording.
func (l *Log) pruneLocked(ctx context.Context) {
	if l.config.MaxAgeDays > 0 {
		cutoff := l.now().AddDate(0, 0, -l.config.MaxAgeDays)
		if deleted, err := l.storage.DeleteRecordsBefore(ctx, cutoff); err != nil {
			l.logger.Warn("age-based retention failed", "error", err)
		} else if deleted > 0 {
			l.logger.Debug("pruned aged records", "deleted", deleted)
		}
	}
	if l.config.MaxRecords > 0 {
		if deleted, err := l.storage.TrimRecords(ctx, l.config.MaxRecords); err != nil {
			l.logger.Warn("count-based retention failed", "error", err)
		} else if deleted > 0 {
			l.logger.Debug("trimmed excess records", "deleted", deleted)
		}
	}
}

func validateChange(change *Change) error {
	if change == nil {
		return fmt.Errorf("change is nil")
	}
	if change.KeyID == "" {
		return fmt.Errorf("key_id is required")
	}
	if !change.Operation.Valid() {
		return fmt.Errorf("unknown operation type %q", change.Operation)
	}
	if !change.Source.Valid() {
		return fmt.Errorf("unknown change source %q", change.Source)
	}
	if change.NewWeight < 0 {
		return fmt.Errorf("new weight must be non-negative, got %d", change.NewWeight)
	}
	return nil
}
