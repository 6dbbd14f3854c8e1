package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/MAQSOODAWANhaha/gem-proxy/pkg/audit"
)

func newTestSQLite(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(&SQLiteConfig{
		Path:         filepath.Join(t.TempDir(), "audit.db"),
		MaxOpenConns: 2,
		MaxIdleConns: 1,
		WALMode:      true,
		BusyTimeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("NewSQLiteStorage() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestSQLiteStorage_AppendAndQuery tests the full record roundtrip.
func TestSQLiteStorage_AppendAndQuery(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)
	now := time.Now().UTC().Truncate(time.Second)

	record := &audit.ChangeRecord{
		ID:        "r1",
		Version:   1,
		Timestamp: now,
		KeyID:     "key-1",
		OldWeight: 100,
		NewWeight: 250,
		Operation: audit.OperationManual,
		Source:    audit.SourceWebUI,
		Operator:  "admin",
		Reason:    "rebalance",
		BatchID:   "batch-1",
		Metadata:  map[string]string{"snapshot_id": "snap-7"},
	}
	if err := s.AppendRecord(ctx, record); err != nil {
		t.Fatalf("AppendRecord() failed: %v", err)
	}

	// Duplicate version rejected by the UNIQUE constraint.
	dup := *record
	dup.ID = "r2"
	if err := s.AppendRecord(ctx, &dup); err == nil {
		t.Error("AppendRecord() accepted duplicate version")
	}

	records, err := s.QueryRecords(ctx, &audit.Query{KeyID: "key-1"})
	if err != nil {
		t.Fatalf("QueryRecords() failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	got := records[0]
	if got.ID != record.ID || got.Version != record.Version {
		t.Errorf("identity mismatch: got %s/%d", got.ID, got.Version)
	}
	if got.Operation != audit.OperationManual || got.Source != audit.SourceWebUI {
		t.Errorf("provenance mismatch: %s/%s", got.Operation, got.Source)
	}
	if got.OldWeight != 100 || got.NewWeight != 250 {
		t.Errorf("weights = %d->%d, want 100->250", got.OldWeight, got.NewWeight)
	}
	if got.Operator != "admin" || got.Reason != "rebalance" || got.BatchID != "batch-1" {
		t.Errorf("provenance mismatch: %+v", got)
	}
	if got.Metadata["snapshot_id"] != "snap-7" {
		t.Errorf("metadata = %v, want snapshot_id snap-7", got.Metadata)
	}

	// Operator filtering matches substrings.
	records, err = s.QueryRecords(ctx, &audit.Query{Operator: "adm"})
	if err != nil {
		t.Fatalf("QueryRecords() failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("operator substring matched %d records, want 1", len(records))
	}
}

// TestSQLiteStorage_QueryFilters tests WHERE clause construction.
func TestSQLiteStorage_QueryFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)
	base := time.Now().UTC()

	ops := []audit.OperationType{
		audit.OperationManual, audit.OperationBatch, audit.OperationManual,
		audit.OperationRollback, audit.OperationIntelligent,
	}
	for i, op := range ops {
		record := &audit.ChangeRecord{
			ID:        string(rune('a' + i)),
			Version:   int64(i + 1),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			KeyID:     "key-1",
			OldWeight: i,
			NewWeight: i + 1,
			Operation: op,
			Source:    audit.SourceAPI,
		}
		if err := s.AppendRecord(ctx, record); err != nil {
			t.Fatalf("AppendRecord() failed: %v", err)
		}
	}

	records, err := s.QueryRecords(ctx, &audit.Query{Operation: audit.OperationManual})
	if err != nil {
		t.Fatalf("QueryRecords() failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("manual records = %d, want 2", len(records))
	}

	count, err := s.CountRecords(ctx, &audit.Query{Source: audit.SourceAPI})
	if err != nil {
		t.Fatalf("CountRecords() failed: %v", err)
	}
	if count != 5 {
		t.Errorf("CountRecords() = %d, want 5", count)
	}

	// Newest first by default.
	records, err = s.QueryRecords(ctx, &audit.Query{Limit: 2})
	if err != nil {
		t.Fatalf("QueryRecords() failed: %v", err)
	}
	if len(records) != 2 || records[0].Version != 5 {
		t.Errorf("default query wrong: %d records, first version %d", len(records), records[0].Version)
	}

	// Ascending on request.
	records, err = s.QueryRecords(ctx, &audit.Query{SortOrder: "asc", Limit: 2})
	if err != nil {
		t.Fatalf("QueryRecords() failed: %v", err)
	}
	if len(records) != 2 || records[0].Version != 1 {
		t.Errorf("asc query wrong: %d records, first version %d", len(records), records[0].Version)
	}

	max, err := s.MaxVersion(ctx)
	if err != nil {
		t.Fatalf("MaxVersion() failed: %v", err)
	}
	if max != 5 {
		t.Errorf("MaxVersion() = %d, want 5", max)
	}
}

// TestSQLiteStorage_Retention tests delete-before and trim.
func TestSQLiteStorage_Retention(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)
	base := time.Now().UTC()

	for i := 0; i < 6; i++ {
		record := &audit.ChangeRecord{
			ID:        string(rune('a' + i)),
			Version:   int64(i + 1),
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			KeyID:     "key-1",
			Operation: audit.OperationManual,
			Source:    audit.SourceAPI,
		}
		if err := s.AppendRecord(ctx, record); err != nil {
			t.Fatalf("AppendRecord() failed: %v", err)
		}
	}

	deleted, err := s.DeleteRecordsBefore(ctx, base.Add(90*time.Minute))
	if err != nil {
		t.Fatalf("DeleteRecordsBefore() failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	trimmed, err := s.TrimRecords(ctx, 3)
	if err != nil {
		t.Fatalf("TrimRecords() failed: %v", err)
	}
	if trimmed != 1 {
		t.Errorf("trimmed = %d, want 1", trimmed)
	}

	count, _ := s.CountRecords(ctx, &audit.Query{})
	if count != 3 {
		t.Errorf("remaining = %d, want 3", count)
	}
}

// TestSQLiteStorage_Snapshots tests the snapshot roundtrip with the
// JSON-encoded weights column.
func TestSQLiteStorage_Snapshots(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	snapshot := &audit.Snapshot{
		ID:          "snap-1",
		Timestamp:   time.Now().UTC().Truncate(time.Second),
		Version:     42,
		Weights:     map[string]int{"a": 100, "b": 200},
		Description: "pre-rollout",
		Operator:    "admin",
	}
	if err := s.PutSnapshot(ctx, snapshot); err != nil {
		t.Fatalf("PutSnapshot() failed: %v", err)
	}

	got, err := s.GetSnapshot(ctx, "snap-1")
	if err != nil {
		t.Fatalf("GetSnapshot() failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetSnapshot() returned nil")
	}
	if got.Version != 42 || got.Weights["a"] != 100 || got.Weights["b"] != 200 {
		t.Errorf("snapshot roundtrip mismatch: %+v", got)
	}
	if got.Description != "pre-rollout" || got.Operator != "admin" {
		t.Errorf("metadata mismatch: %+v", got)
	}

	missing, err := s.GetSnapshot(ctx, "nope")
	if err != nil {
		t.Fatalf("GetSnapshot() failed: %v", err)
	}
	if missing != nil {
		t.Error("GetSnapshot(nope) should return nil")
	}

	if err := s.DeleteSnapshot(ctx, "snap-1"); err != nil {
		t.Fatalf("DeleteSnapshot() failed: %v", err)
	}
	if err := s.DeleteSnapshot(ctx, "snap-1"); err == nil {
		t.Error("DeleteSnapshot() of missing snapshot should fail")
	}
}
