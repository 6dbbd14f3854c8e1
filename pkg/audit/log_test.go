package audit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/MAQSOODAWANhaha/gem-proxy/pkg/audit"
	"github.com/MAQSOODAWANhaha/gem-proxy/pkg/audit/export"
	"github.com/MAQSOODAWANhaha/gem-proxy/pkg/audit/storage"
)

func newTestLog(t *testing.T, config *audit.Config) (*audit.Log, *storage.MemoryStorage) {
	t.Helper()
	store := storage.NewMemoryStorage()
	log, err := audit.NewLog(store, config)
	if err != nil {
		t.Fatalf("NewLog() failed: %v", err)
	}
	return log, store
}

func testChange(keyID string, oldW, newW int) *audit.Change {
	return &audit.Change{
		KeyID:     keyID,
		OldWeight: oldW,
		NewWeight: newW,
		Operation: audit.OperationManual,
		Source:    audit.SourceAPI,
		Operator:  "tester",
		Reason:    "test",
	}
}

// TestLog_RecordChange tests record appending and version assignment.
func TestLog_RecordChange(t *testing.T) {
	ctx := context.Background()
	log, _ := newTestLog(t, nil)

	r1, err := log.RecordChange(ctx, testChange("key-1", 100, 200))
	if err != nil {
		t.Fatalf("RecordChange() failed: %v", err)
	}
	if r1.Version != 1 {
		t.Errorf("first record version = %d, want 1", r1.Version)
	}
	if r1.ID == "" {
		t.Error("record ID not assigned")
	}
	if r1.Timestamp.IsZero() {
		t.Error("record timestamp not assigned")
	}

	r2, err := log.RecordChange(ctx, testChange("key-2", 50, 75))
	if err != nil {
		t.Fatalf("RecordChange() failed: %v", err)
	}
	if r2.Version != 2 {
		t.Errorf("second record version = %d, want 2", r2.Version)
	}

	if log.Version() != 2 {
		t.Errorf("Version() = %d, want 2", log.Version())
	}
}

// TestLog_RecordChangeValidation tests rejection of malformed changes.
func TestLog_RecordChangeValidation(t *testing.T) {
	ctx := context.Background()
	log, _ := newTestLog(t, nil)

	tests := []struct {
		name   string
		change *audit.Change
	}{
		{"missing key id", &audit.Change{Operation: audit.OperationManual, Source: audit.SourceAPI}},
		{"unknown operation", &audit.Change{KeyID: "k", Operation: "bogus", Source: audit.SourceAPI}},
		{"unknown source", &audit.Change{KeyID: "k", Operation: audit.OperationManual, Source: "bogus"}},
		{"negative weight", &audit.Change{KeyID: "k", Operation: audit.OperationManual, Source: audit.SourceAPI, NewWeight: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := log.RecordChange(ctx, tt.change)
			var recordErr *audit.RecordError
			if !errors.As(err, &recordErr) {
				t.Errorf("RecordChange() = %v, want RecordError", err)
			}
		})
	}

	if log.Version() != 0 {
		t.Errorf("Version() = %d after rejected changes, want 0", log.Version())
	}
}

// TestLog_VersionSeedsFromStorage tests that a new log continues the
// version sequence of existing records.
func TestLog_VersionSeedsFromStorage(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()

	first, err := audit.NewLog(store, nil)
	if err != nil {
		t.Fatalf("NewLog() failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := first.RecordChange(ctx, testChange("key-1", i, i+1)); err != nil {
			t.Fatalf("RecordChange() failed: %v", err)
		}
	}

	// Simulate a restart over the same storage.
	second, err := audit.NewLog(store, nil)
	if err != nil {
		t.Fatalf("NewLog() failed: %v", err)
	}
	record, err := second.RecordChange(ctx, testChange("key-1", 3, 4))
	if err != nil {
		t.Fatalf("RecordChange() failed: %v", err)
	}
	if record.Version != 4 {
		t.Errorf("version after restart = %d, want 4", record.Version)
	}
}

// TestLog_RecordBatch tests shared batch IDs across a batch.
func TestLog_RecordBatch(t *testing.T) {
	ctx := context.Background()
	log, _ := newTestLog(t, nil)

	records, err := log.RecordBatch(ctx, []*audit.Change{
		{KeyID: "a", OldWeight: 100, NewWeight: 150, Source: audit.SourceAPI},
		{KeyID: "b", OldWeight: 200, NewWeight: 250, Source: audit.SourceAPI},
	})
	if err != nil {
		t.Fatalf("RecordBatch() failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("RecordBatch() returned %d records, want 2", len(records))
	}
	if records[0].BatchID == "" || records[0].BatchID != records[1].BatchID {
		t.Errorf("batch IDs %q and %q, want equal and non-empty", records[0].BatchID, records[1].BatchID)
	}
	for _, record := range records {
		if record.Operation != audit.OperationBatch {
			t.Errorf("operation = %s, want batch", record.Operation)
		}
	}
}

// TestLog_Query tests filter plumbing through the log.
func TestLog_Query(t *testing.T) {
	ctx := context.Background()
	log, _ := newTestLog(t, nil)

	log.RecordChange(ctx, testChange("key-1", 100, 200))
	log.RecordChange(ctx, testChange("key-2", 100, 300))
	log.RecordChange(ctx, testChange("key-1", 200, 250))

	records, err := log.Query(ctx, &audit.Query{KeyID: "key-1"})
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("Query(key-1) returned %d records, want 2", len(records))
	}

	// Results come back newest first without an explicit sort order.
	records, err = log.Query(ctx, &audit.Query{})
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if records[0].Version != 3 {
		t.Errorf("default query order: first record version = %d, want 3 (newest first)", records[0].Version)
	}

	// Operator filtering matches substrings.
	records, err = log.Query(ctx, &audit.Query{Operator: "test"})
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("operator substring matched %d records, want 3", len(records))
	}

	count, err := log.Count(ctx, &audit.Query{Operation: audit.OperationManual})
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Count() = %d, want 3", count)
	}

	// Invalid query surfaces a QueryError.
	_, err = log.Query(ctx, &audit.Query{Limit: -1})
	var queryErr *audit.QueryError
	if !errors.As(err, &queryErr) {
		t.Errorf("Query(limit=-1) = %v, want QueryError", err)
	}
}

// TestLog_WeightChangeTrend tests ascending history per key.
func TestLog_WeightChangeTrend(t *testing.T) {
	ctx := context.Background()
	log, _ := newTestLog(t, nil)

	weights := []int{100, 150, 120, 200}
	prev := 0
	for _, w := range weights {
		log.RecordChange(ctx, testChange("key-1", prev, w))
		prev = w
	}
	log.RecordChange(ctx, testChange("other", 0, 10))

	trend, err := log.WeightChangeTrend(ctx, "key-1", 30)
	if err != nil {
		t.Fatalf("WeightChangeTrend() failed: %v", err)
	}
	if len(trend) != 4 {
		t.Fatalf("trend length = %d, want 4", len(trend))
	}
	for i, record := range trend {
		if record.NewWeight != weights[i] {
			t.Errorf("trend[%d].NewWeight = %d, want %d", i, record.NewWeight, weights[i])
		}
	}

	// A non-positive window covers the whole log.
	trend, err = log.WeightChangeTrend(ctx, "key-1", 0)
	if err != nil {
		t.Fatalf("WeightChangeTrend() failed: %v", err)
	}
	if len(trend) != 4 {
		t.Fatalf("unwindowed trend length = %d, want 4", len(trend))
	}
}

// TestLog_Statistics tests aggregation over recorded changes.
func TestLog_Statistics(t *testing.T) {
	ctx := context.Background()
	log, _ := newTestLog(t, nil)

	log.RecordChange(ctx, testChange("key-1", 100, 200))
	log.RecordChange(ctx, testChange("key-1", 200, 150))
	log.RecordChange(ctx, &audit.Change{
		KeyID:     "key-2",
		OldWeight: 50,
		NewWeight: 60,
		Operation: audit.OperationIntelligent,
		Source:    audit.SourceOptimizer,
	})

	stats, err := log.Statistics(ctx, 7)
	if err != nil {
		t.Fatalf("Statistics() failed: %v", err)
	}

	if stats.TotalChanges != 3 {
		t.Errorf("TotalChanges = %d, want 3", stats.TotalChanges)
	}
	if stats.OperationCounts[audit.OperationManual] != 2 {
		t.Errorf("manual count = %d, want 2", stats.OperationCounts[audit.OperationManual])
	}
	if stats.OperationCounts[audit.OperationIntelligent] != 1 {
		t.Errorf("intelligent count = %d, want 1", stats.OperationCounts[audit.OperationIntelligent])
	}
	if stats.SourceCounts[audit.SourceOptimizer] != 1 {
		t.Errorf("optimizer source count = %d, want 1", stats.SourceCounts[audit.SourceOptimizer])
	}
	if stats.OperatorCounts["tester"] != 2 {
		t.Errorf("tester operator count = %d, want 2", stats.OperatorCounts["tester"])
	}
	if len(stats.MostChangedKeys) == 0 || stats.MostChangedKeys[0].KeyID != "key-1" {
		t.Errorf("MostChangedKeys = %v, want key-1 first", stats.MostChangedKeys)
	}
}

// TestLog_Snapshots tests snapshot creation and bounded retention.
func TestLog_Snapshots(t *testing.T) {
	ctx := context.Background()
	log, _ := newTestLog(t, &audit.Config{MaxSnapshots: 2})

	for i := 0; i < 3; i++ {
		_, err := log.CreateSnapshot(ctx, map[string]int{"key-1": 100 + i}, "checkpoint", "tester")
		if err != nil {
			t.Fatalf("CreateSnapshot() failed: %v", err)
		}
		// Memory storage orders snapshots by timestamp.
		time.Sleep(time.Millisecond)
	}

	snapshots, err := log.Snapshots(ctx)
	if err != nil {
		t.Fatalf("Snapshots() failed: %v", err)
	}
	if len(snapshots) != 2 {
		t.Fatalf("snapshot count = %d, want 2 after eviction", len(snapshots))
	}
	// The oldest was evicted; the survivors carry the later weights.
	if snapshots[0].Weights["key-1"] != 101 || snapshots[1].Weights["key-1"] != 102 {
		t.Errorf("surviving weights = %d, %d, want 101, 102",
			snapshots[0].Weights["key-1"], snapshots[1].Weights["key-1"])
	}
}

// TestLog_GetSnapshot tests the lookup and not-found paths.
func TestLog_GetSnapshot(t *testing.T) {
	ctx := context.Background()
	log, _ := newTestLog(t, nil)

	created, err := log.CreateSnapshot(ctx, map[string]int{"key-1": 100}, "checkpoint", "tester")
	if err != nil {
		t.Fatalf("CreateSnapshot() failed: %v", err)
	}

	got, err := log.GetSnapshot(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetSnapshot() failed: %v", err)
	}
	if got.ID != created.ID || got.Weights["key-1"] != 100 {
		t.Errorf("GetSnapshot() = %+v, want the created snapshot", got)
	}

	_, err = log.GetSnapshot(ctx, "no-such-id")
	var notFound *audit.SnapshotNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("GetSnapshot(missing) = %v, want SnapshotNotFoundError", err)
	}
}

// TestLog_RollbackToSnapshot tests rollback computation and its records.
func TestLog_RollbackToSnapshot(t *testing.T) {
	ctx := context.Background()
	log, _ := newTestLog(t, nil)

	snapshot, err := log.CreateSnapshot(ctx, map[string]int{"a": 100, "b": 200, "gone": 50}, "before change", "tester")
	if err != nil {
		t.Fatalf("CreateSnapshot() failed: %v", err)
	}

	// Live weights diverged from the snapshot; "gone" was removed.
	live := map[string]int{"a": 500, "b": 10}
	lookup := func(keyID string) (int, bool) {
		w, ok := live[keyID]
		return w, ok
	}

	target, err := log.RollbackToSnapshot(ctx, snapshot.ID, "tester", "bad rollout", lookup)
	if err != nil {
		t.Fatalf("RollbackToSnapshot() failed: %v", err)
	}

	if len(target) != 2 {
		t.Fatalf("target weights = %v, want 2 entries", target)
	}
	if target["a"] != 100 || target["b"] != 200 {
		t.Errorf("target = %v, want a=100 b=200", target)
	}

	// One Rollback record per restored key, sharing a batch ID, with the
	// live weight as OldWeight.
	records, err := log.Query(ctx, &audit.Query{Operation: audit.OperationRollback})
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("rollback records = %d, want 2", len(records))
	}
	if records[0].BatchID == "" || records[0].BatchID != records[1].BatchID {
		t.Error("rollback records should share a batch ID")
	}
	for _, record := range records {
		if record.OldWeight != live[record.KeyID] {
			t.Errorf("OldWeight for %s = %d, want live %d", record.KeyID, record.OldWeight, live[record.KeyID])
		}
		// Every rollback record references the snapshot it replayed.
		if record.Metadata[audit.MetadataSnapshotID] != snapshot.ID {
			t.Errorf("metadata snapshot_id for %s = %q, want %q",
				record.KeyID, record.Metadata[audit.MetadataSnapshotID], snapshot.ID)
		}
		if record.Metadata[audit.MetadataRollbackReason] != "bad rollout" {
			t.Errorf("metadata rollback_reason = %q", record.Metadata[audit.MetadataRollbackReason])
		}
	}
}

// TestLog_RollbackMissingSnapshot tests the not-found path.
func TestLog_RollbackMissingSnapshot(t *testing.T) {
	ctx := context.Background()
	log, _ := newTestLog(t, nil)

	_, err := log.RollbackToSnapshot(ctx, "no-such-id", "tester", "", func(string) (int, bool) { return 0, false })
	var notFound *audit.SnapshotNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("RollbackToSnapshot() = %v, want SnapshotNotFoundError", err)
	}
}

// TestLog_CountRetention tests trimming after exceeding MaxRecords.
func TestLog_CountRetention(t *testing.T) {
	ctx := context.Background()
	log, store := newTestLog(t, &audit.Config{MaxRecords: 5})

	for i := 0; i < 8; i++ {
		if _, err := log.RecordChange(ctx, testChange("key-1", i, i+1)); err != nil {
			t.Fatalf("RecordChange() failed: %v", err)
		}
	}

	if store.Size() != 5 {
		t.Errorf("stored records = %d, want 5 after trimming", store.Size())
	}

	// Versions keep increasing despite trimming.
	if log.Version() != 8 {
		t.Errorf("Version() = %d, want 8", log.Version())
	}
}

// TestLog_ExportRecords tests the export plumbing end to end.
func TestLog_ExportRecords(t *testing.T) {
	ctx := context.Background()
	log, _ := newTestLog(t, nil)

	log.RecordChange(ctx, testChange("key-1", 100, 200))
	log.RecordChange(ctx, testChange("key-2", 50, 75))

	var buf bytes.Buffer
	err := log.ExportRecords(ctx, &audit.Query{}, export.NewJSONExporter(false), &buf)
	if err != nil {
		t.Fatalf("ExportRecords() failed: %v", err)
	}

	var exported []*audit.ChangeRecord
	if err := json.Unmarshal(buf.Bytes(), &exported); err != nil {
		t.Fatalf("exported JSON invalid: %v", err)
	}
	if len(exported) != 2 {
		t.Errorf("exported %d records, want 2", len(exported))
	}
}
