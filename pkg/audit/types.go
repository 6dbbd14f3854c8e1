package audit

import (
	"context"
	"fmt"
	"io"
	"time"
)

// OperationType classifies how a weight change was initiated.
type OperationType string

const (
	// OperationManual is an explicit change by a human operator.
	OperationManual OperationType = "manual"
	// OperationIntelligent is a change proposed and applied by the optimizer.
	OperationIntelligent OperationType = "intelligent"
	// OperationBatch is one change within a multi-key batch update.
	OperationBatch OperationType = "batch"
	// OperationRollback is a change produced by restoring a snapshot.
	OperationRollback OperationType = "rollback"
	// OperationAutomatic is a change made by the system without operator
	// involvement, such as a config file reload.
	OperationAutomatic OperationType = "automatic"
)

// Valid reports whether the operation type is a known value.
func (t OperationType) Valid() bool {
	switch t {
	case OperationManual, OperationIntelligent, OperationBatch, OperationRollback, OperationAutomatic:
		return true
	}
	return false
}

// String returns the wire representation of the operation type.
func (t OperationType) String() string { return string(t) }

// ParseOperationType converts a string into an OperationType.
func ParseOperationType(s string) (OperationType, error) {
	t := OperationType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown operation type %q", s)
	}
	return t, nil
}

// ChangeSource identifies the subsystem a change originated from.
type ChangeSource string

const (
	// SourceWebUI marks changes made through the management UI.
	SourceWebUI ChangeSource = "web_ui"
	// SourceAPI marks changes made through the management API.
	SourceAPI ChangeSource = "api"
	// SourceConfigFile marks changes applied from a configuration reload.
	SourceConfigFile ChangeSource = "config_file"
	// SourceOptimizer marks changes applied by the weight optimizer.
	SourceOptimizer ChangeSource = "optimizer"
	// SourceMonitor marks changes applied by health monitoring.
	SourceMonitor ChangeSource = "monitor"
)

// Valid reports whether the change source is a known value.
func (s ChangeSource) Valid() bool {
	switch s {
	case SourceWebUI, SourceAPI, SourceConfigFile, SourceOptimizer, SourceMonitor:
		return true
	}
	return false
}

// String returns the wire representation of the change source.
func (s ChangeSource) String() string { return string(s) }

// ParseChangeSource converts a string into a ChangeSource.
func ParseChangeSource(raw string) (ChangeSource, error) {
	s := ChangeSource(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown change source %q", raw)
	}
	return s, nil
}

// ChangeRecord is one immutable entry in the audit log. Records are
// append-only; a correction is expressed as a new record, never as an
// edit.
type ChangeRecord struct {
	// Identity
	ID      string `json:"id"`      // UUID v4
	Version int64  `json:"version"` // Global, strictly increasing

	// Timestamps
	Timestamp time.Time `json:"timestamp"` // When the change was applied

	// Change content
	KeyID     string `json:"key_id"`     // Key the change applies to
	OldWeight int    `json:"old_weight"` // Weight before the change
	NewWeight int    `json:"new_weight"` // Weight after the change

	// Provenance
	Operation OperationType `json:"operation"` // How the change was initiated
	Source    ChangeSource  `json:"source"`    // Where the change came from
	Operator  string        `json:"operator"`  // Who or what made the change
	Reason    string        `json:"reason"`    // Free-form explanation

	// BatchID correlates records belonging to one batch or rollback
	// operation. Empty for single-key changes.
	BatchID string `json:"batch_id,omitempty"`

	// Metadata carries free-form context for the change. Rollback
	// records use it to reference the snapshot they replayed; that
	// reference stays valid even after the snapshot is deleted.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Metadata keys written by the log itself.
const (
	// MetadataSnapshotID is set on rollback records to the ID of the
	// snapshot that was replayed.
	MetadataSnapshotID = "snapshot_id"
	// MetadataRollbackReason is set on rollback records to the
	// operator-supplied reason for the rollback.
	MetadataRollbackReason = "rollback_reason"
)

// Snapshot freezes the weight of every key at a point in time. Rollback
// restores the pool to a snapshot's weight set by replay.
type Snapshot struct {
	ID          string         `json:"id"`          // UUID v4
	Timestamp   time.Time      `json:"timestamp"`   // When the snapshot was taken
	Version     int64          `json:"version"`     // Audit version at snapshot time
	Weights     map[string]int `json:"weights"`     // Weight per key ID
	Description string         `json:"description"` // Why the snapshot was taken
	Operator    string         `json:"operator"`    // Who took it
}

// Query defines filter parameters for querying change records.
type Query struct {
	// Time range
	StartTime *time.Time `json:"start_time,omitempty"` // Inclusive start time
	EndTime   *time.Time `json:"end_time,omitempty"`   // Inclusive end time

	// Filters
	KeyID     string        `json:"key_id,omitempty"`    // Filter by key ID
	Operation OperationType `json:"operation,omitempty"` // Filter by operation type
	Source    ChangeSource  `json:"source,omitempty"`    // Filter by change source
	Operator  string        `json:"operator,omitempty"`  // Filter by operator
	BatchID   string        `json:"batch_id,omitempty"`  // Filter by batch

	// Version range
	MinVersion *int64 `json:"min_version,omitempty"` // Inclusive minimum version
	MaxVersion *int64 `json:"max_version,omitempty"` // Inclusive maximum version

	// Pagination
	Limit  int `json:"limit,omitempty"`  // Max records to return
	Offset int `json:"offset,omitempty"` // Skip N records

	// Sorting. Records sort by version; "desc" returns newest first.
	SortOrder string `json:"sort_order,omitempty"` // "desc" (default, newest first) or "asc"
}

// Storage defines the interface for audit storage backends.
// Implementations must be thread-safe and support concurrent access.
type Storage interface {
	// AppendRecord persists a change record. Versions are assigned by the
	// audit log, not the backend; the backend must reject duplicates.
	AppendRecord(ctx context.Context, record *ChangeRecord) error

	// QueryRecords retrieves change records matching the query filters.
	// Returns an empty slice if no records match.
	QueryRecords(ctx context.Context, query *Query) ([]*ChangeRecord, error)

	// CountRecords returns the number of records matching the query filters.
	CountRecords(ctx context.Context, query *Query) (int64, error)

	// MaxVersion returns the highest version stored, or 0 when empty.
	// The audit log seeds its version counter from this on startup.
	MaxVersion(ctx context.Context) (int64, error)

	// DeleteRecordsBefore removes records older than the cutoff.
	// Returns the number of records deleted.
	DeleteRecordsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// TrimRecords removes the oldest records so that at most keep remain.
	// Returns the number of records deleted.
	TrimRecords(ctx context.Context, keep int) (int64, error)

	// PutSnapshot persists a snapshot.
	PutSnapshot(ctx context.Context, snapshot *Snapshot) error

	// GetSnapshot retrieves a snapshot by ID.
	GetSnapshot(ctx context.Context, id string) (*Snapshot, error)

	// ListSnapshots returns all snapshots ordered oldest first.
	ListSnapshots(ctx context.Context) ([]*Snapshot, error)

	// DeleteSnapshot removes a snapshot by ID.
	DeleteSnapshot(ctx context.Context, id string) error

	// Close releases any resources held by the storage backend.
	Close() error
}

// Exporter defines the interface for exporting change records to
// various formats.
type Exporter interface {
	// Export writes change records to the provided writer in the
	// exporter's format.
	Export(ctx context.Context, records []*ChangeRecord, w io.Writer) error
}
