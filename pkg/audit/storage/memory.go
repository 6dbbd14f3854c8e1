package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MAQSOODAWANhaha/gem-proxy/pkg/audit"
)

// MemoryStorage implements the audit.Storage interface using in-memory
// slices. It is intended for tests and ephemeral deployments; nothing
// survives a restart.
type MemoryStorage struct {
	mu        sync.RWMutex
	records   []*audit.ChangeRecord // Ascending version order
	snapshots []*audit.Snapshot     // Ascending timestamp order
	byID      map[string]bool
}

// NewMemoryStorage creates a new in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		byID: make(map[string]bool),
	}
}

// AppendRecord persists a change record to memory.
func (s *MemoryStorage) AppendRecord(ctx context.Context, record *audit.ChangeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.byID[record.ID] {
		return audit.NewStorageError("memory", "append", fmt.Errorf("duplicate record id %s", record.ID))
	}
	if n := len(s.records); n > 0 && record.Version <= s.records[n-1].Version {
		return audit.NewStorageError("memory", "append",
			fmt.Errorf("version %d not after %d", record.Version, s.records[n-1].Version))
	}

	// Copy to avoid caller mutation.
	s.records = append(s.records, copyRecord(record))
	s.byID[record.ID] = true

	return nil
}

// copyRecord deep-copies a change record so callers and storage never
// share the metadata map.
func copyRecord(record *audit.ChangeRecord) *audit.ChangeRecord {
	recordCopy := *record
	if len(record.Metadata) > 0 {
		recordCopy.Metadata = make(map[string]string, len(record.Metadata))
		for k, v := range record.Metadata {
			recordCopy.Metadata[k] = v
		}
	}
	return &recordCopy
}

// QueryRecords retrieves change records matching the query filters.
func (s *MemoryStorage) QueryRecords(ctx context.Context, query *audit.Query) ([]*audit.ChangeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := []*audit.ChangeRecord{}
	for _, record := range s.records {
		if matchesQuery(record, query) {
			results = append(results, copyRecord(record))
		}
	}

	// Newest first unless ascending was asked for explicitly.
	if query.SortOrder != "asc" {
		for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
			results[i], results[j] = results[j], results[i]
		}
	}

	// Apply pagination
	start := query.Offset
	if start > len(results) {
		return []*audit.ChangeRecord{}, nil
	}
	results = results[start:]
	if query.Limit > 0 && query.Limit < len(results) {
		results = results[:query.Limit]
	}

	return results, nil
}

// CountRecords returns the number of records matching the query filters.
func (s *MemoryStorage) CountRecords(ctx context.Context, query *audit.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, record := range s.records {
		if matchesQuery(record, query) {
			count++
		}
	}
	return count, nil
}

// MaxVersion returns the highest version stored, or 0 when empty.
func (s *MemoryStorage) MaxVersion(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 {
		return 0, nil
	}
	return s.records[len(s.records)-1].Version, nil
}

// DeleteRecordsBefore removes records older than the cutoff.
func (s *MemoryStorage) DeleteRecordsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	var deleted int64
	for _, record := range s.records {
		if record.Timestamp.Before(cutoff) {
			delete(s.byID, record.ID)
			deleted++
			continue
		}
		kept = append(kept, record)
	}
	s.records = kept
	return deleted, nil
}

// TrimRecords removes the oldest records so that at most keep remain.
func (s *MemoryStorage) TrimRecords(ctx context.Context, keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	excess := len(s.records) - keep
	if excess <= 0 {
		return 0, nil
	}
	for _, record := range s.records[:excess] {
		delete(s.byID, record.ID)
	}
	s.records = append([]*audit.ChangeRecord{}, s.records[excess:]...)
	return int64(excess), nil
}

// PutSnapshot persists a snapshot.
func (s *MemoryStorage) PutSnapshot(ctx context.Context, snapshot *audit.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapCopy := *snapshot
	snapCopy.Weights = make(map[string]int, len(snapshot.Weights))
	for id, w := range snapshot.Weights {
		snapCopy.Weights[id] = w
	}

	s.snapshots = append(s.snapshots, &snapCopy)
	sort.Slice(s.snapshots, func(i, j int) bool {
		return s.snapshots[i].Timestamp.Before(s.snapshots[j].Timestamp)
	})
	return nil
}

// GetSnapshot retrieves a snapshot by ID. Returns nil when not found.
func (s *MemoryStorage) GetSnapshot(ctx context.Context, id string) (*audit.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, snapshot := range s.snapshots {
		if snapshot.ID == id {
			return copySnapshot(snapshot), nil
		}
	}
	return nil, nil
}

// ListSnapshots returns all snapshots ordered oldest first.
func (s *MemoryStorage) ListSnapshots(ctx context.Context) ([]*audit.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*audit.Snapshot, 0, len(s.snapshots))
	for _, snapshot := range s.snapshots {
		results = append(results, copySnapshot(snapshot))
	}
	return results, nil
}

// copySnapshot deep-copies a snapshot so callers cannot mutate storage.
func copySnapshot(snapshot *audit.Snapshot) *audit.Snapshot {
	snapCopy := *snapshot
	snapCopy.Weights = make(map[string]int, len(snapshot.Weights))
	for id, w := range snapshot.Weights {
		snapCopy.Weights[id] = w
	}
	return &snapCopy
}

// DeleteSnapshot removes a snapshot by ID.
func (s *MemoryStorage) DeleteSnapshot(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, snapshot := range s.snapshots {
		if snapshot.ID == id {
			s.snapshots = append(s.snapshots[:i], s.snapshots[i+1:]...)
			return nil
		}
	}
	return audit.NewStorageError("memory", "delete_snapshot", fmt.Errorf("snapshot %s not found", id))
}

// Close releases resources held by the storage backend.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.snapshots = nil
	s.byID = make(map[string]bool)
	return nil
}

// Size returns the number of records in storage (for testing).
func (s *MemoryStorage) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

// matchesQuery checks if a record matches the query filters.
func matchesQuery(record *audit.ChangeRecord, query *audit.Query) bool {
	// Time range filter
	if query.StartTime != nil && record.Timestamp.Before(*query.StartTime) {
		return false
	}
	if query.EndTime != nil && record.Timestamp.After(*query.EndTime) {
		return false
	}

	// Identity filters
	if query.KeyID != "" && record.KeyID != query.KeyID {
		return false
	}
	// Operator matches by substring so "alice" finds "alice@example.com".
	if query.Operator != "" && !strings.Contains(record.Operator, query.Operator) {
		return false
	}
	if query.BatchID != "" && record.BatchID != query.BatchID {
		return false
	}

	// Enum filters
	if query.Operation != "" && record.Operation != query.Operation {
		return false
	}
	if query.Source != "" && record.Source != query.Source {
		return false
	}

	// Version range
	if query.MinVersion != nil && record.Version < *query.MinVersion {
		return false
	}
	if query.MaxVersion != nil && record.Version > *query.MaxVersion {
		return false
	}

	return true
}
