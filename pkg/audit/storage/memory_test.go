package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/MAQSOODAWANhaha/gem-proxy/pkg/audit"
)

func makeRecord(id string, version int64, keyID string, ts time.Time) *audit.ChangeRecord {
	return &audit.ChangeRecord{
		ID:        id,
		Version:   version,
		Timestamp: ts,
		KeyID:     keyID,
		OldWeight: 100,
		NewWeight: 200,
		Operation: audit.OperationManual,
		Source:    audit.SourceAPI,
		Operator:  "tester",
	}
}

// TestMemoryStorage_AppendRecord tests appending and duplicate rejection.
func TestMemoryStorage_AppendRecord(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	now := time.Now()

	if err := s.AppendRecord(ctx, makeRecord("r1", 1, "key-1", now)); err != nil {
		t.Fatalf("AppendRecord() failed: %v", err)
	}

	// Duplicate ID rejected.
	if err := s.AppendRecord(ctx, makeRecord("r1", 2, "key-1", now)); err == nil {
		t.Error("AppendRecord() accepted duplicate ID")
	}

	// Non-increasing version rejected.
	if err := s.AppendRecord(ctx, makeRecord("r2", 1, "key-1", now)); err == nil {
		t.Error("AppendRecord() accepted non-increasing version")
	}

	if s.Size() != 1 {
		t.Errorf("Size() = %d, want 1", s.Size())
	}
}

// TestMemoryStorage_QueryRecords tests filters, ordering, and pagination.
func TestMemoryStorage_QueryRecords(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	base := time.Now()

	for i := int64(1); i <= 5; i++ {
		keyID := "key-a"
		if i%2 == 0 {
			keyID = "key-b"
		}
		record := makeRecord(string(rune('0'+i)), i, keyID, base.Add(time.Duration(i)*time.Minute))
		if err := s.AppendRecord(ctx, record); err != nil {
			t.Fatalf("AppendRecord() failed: %v", err)
		}
	}

	t.Run("by key", func(t *testing.T) {
		records, err := s.QueryRecords(ctx, &audit.Query{KeyID: "key-a"})
		if err != nil {
			t.Fatalf("QueryRecords() failed: %v", err)
		}
		if len(records) != 3 {
			t.Errorf("got %d records, want 3", len(records))
		}
	})

	t.Run("version range", func(t *testing.T) {
		min, max := int64(2), int64(4)
		records, err := s.QueryRecords(ctx, &audit.Query{MinVersion: &min, MaxVersion: &max})
		if err != nil {
			t.Fatalf("QueryRecords() failed: %v", err)
		}
		if len(records) != 3 {
			t.Errorf("got %d records, want 3", len(records))
		}
	})

	t.Run("time range", func(t *testing.T) {
		start := base.Add(3*time.Minute - time.Second)
		records, err := s.QueryRecords(ctx, &audit.Query{StartTime: &start})
		if err != nil {
			t.Fatalf("QueryRecords() failed: %v", err)
		}
		if len(records) != 3 {
			t.Errorf("got %d records, want 3", len(records))
		}
	})

	t.Run("newest first by default", func(t *testing.T) {
		records, err := s.QueryRecords(ctx, &audit.Query{Limit: 2})
		if err != nil {
			t.Fatalf("QueryRecords() failed: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("got %d records, want 2", len(records))
		}
		if records[0].Version != 5 || records[1].Version != 4 {
			t.Errorf("versions = %d, %d, want 5, 4", records[0].Version, records[1].Version)
		}
	})

	t.Run("ascending order", func(t *testing.T) {
		records, err := s.QueryRecords(ctx, &audit.Query{SortOrder: "asc", Limit: 2})
		if err != nil {
			t.Fatalf("QueryRecords() failed: %v", err)
		}
		if len(records) != 2 || records[0].Version != 1 || records[1].Version != 2 {
			t.Errorf("records = %v, want versions 1, 2", records)
		}
	})

	t.Run("operator substring", func(t *testing.T) {
		records, err := s.QueryRecords(ctx, &audit.Query{Operator: "test"})
		if err != nil {
			t.Fatalf("QueryRecords() failed: %v", err)
		}
		if len(records) != 5 {
			t.Errorf("got %d records for operator substring, want 5", len(records))
		}
		records, _ = s.QueryRecords(ctx, &audit.Query{Operator: "nobody"})
		if len(records) != 0 {
			t.Errorf("got %d records for unmatched operator, want 0", len(records))
		}
	})

	t.Run("offset", func(t *testing.T) {
		records, err := s.QueryRecords(ctx, &audit.Query{Offset: 3})
		if err != nil {
			t.Fatalf("QueryRecords() failed: %v", err)
		}
		if len(records) != 2 {
			t.Errorf("got %d records, want 2", len(records))
		}
	})
}

// TestMemoryStorage_Pagination walks a page through ten records and
// checks the page contents in newest-first order.
func TestMemoryStorage_Pagination(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	base := time.Now()

	for i := int64(1); i <= 10; i++ {
		record := makeRecord(fmt.Sprintf("r%d", i), i, "key-1", base.Add(time.Duration(i)*time.Minute))
		if err := s.AppendRecord(ctx, record); err != nil {
			t.Fatalf("AppendRecord() failed: %v", err)
		}
	}

	records, err := s.QueryRecords(ctx, &audit.Query{Limit: 3, Offset: 3})
	if err != nil {
		t.Fatalf("QueryRecords() failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	for i, want := range []int64{7, 6, 5} {
		if records[i].Version != want {
			t.Errorf("records[%d].Version = %d, want %d", i, records[i].Version, want)
		}
	}
}

// TestMemoryStorage_MetadataRoundtrip checks metadata survives storage
// and that callers cannot mutate it afterwards.
func TestMemoryStorage_MetadataRoundtrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	record := makeRecord("r1", 1, "key-1", time.Now())
	record.Metadata = map[string]string{"snapshot_id": "snap-1"}
	if err := s.AppendRecord(ctx, record); err != nil {
		t.Fatalf("AppendRecord() failed: %v", err)
	}
	record.Metadata["snapshot_id"] = "mutated"

	records, err := s.QueryRecords(ctx, &audit.Query{})
	if err != nil {
		t.Fatalf("QueryRecords() failed: %v", err)
	}
	if len(records) != 1 || records[0].Metadata["snapshot_id"] != "snap-1" {
		t.Errorf("metadata = %v, want snapshot_id snap-1", records[0].Metadata)
	}

	// Mutating the returned record must not touch storage either.
	records[0].Metadata["snapshot_id"] = "mutated"
	again, _ := s.QueryRecords(ctx, &audit.Query{})
	if again[0].Metadata["snapshot_id"] != "snap-1" {
		t.Errorf("stored metadata = %v after mutating a copy", again[0].Metadata)
	}
}

// TestMemoryStorage_MaxVersion tests the version seed source.
func TestMemoryStorage_MaxVersion(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	max, err := s.MaxVersion(ctx)
	if err != nil {
		t.Fatalf("MaxVersion() failed: %v", err)
	}
	if max != 0 {
		t.Errorf("MaxVersion() on empty storage = %d, want 0", max)
	}

	s.AppendRecord(ctx, makeRecord("r1", 7, "key-1", time.Now()))
	max, err = s.MaxVersion(ctx)
	if err != nil {
		t.Fatalf("MaxVersion() failed: %v", err)
	}
	if max != 7 {
		t.Errorf("MaxVersion() = %d, want 7", max)
	}
}

// TestMemoryStorage_Retention tests age and count deletion.
func TestMemoryStorage_Retention(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	base := time.Now()

	for i := int64(1); i <= 6; i++ {
		s.AppendRecord(ctx, makeRecord(string(rune('0'+i)), i, "key-1", base.Add(time.Duration(i)*time.Hour)))
	}

	deleted, err := s.DeleteRecordsBefore(ctx, base.Add(150*time.Minute))
	if err != nil {
		t.Fatalf("DeleteRecordsBefore() failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	deleted, err = s.TrimRecords(ctx, 3)
	if err != nil {
		t.Fatalf("TrimRecords() failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("trimmed = %d, want 1", deleted)
	}
	if s.Size() != 3 {
		t.Errorf("Size() = %d, want 3", s.Size())
	}

	// The survivors are the newest records.
	records, _ := s.QueryRecords(ctx, &audit.Query{SortOrder: "asc"})
	if records[0].Version != 4 {
		t.Errorf("oldest surviving version = %d, want 4", records[0].Version)
	}
}

// TestMemoryStorage_Snapshots tests snapshot CRUD.
func TestMemoryStorage_Snapshots(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	base := time.Now()

	snapshots := []*audit.Snapshot{
		{ID: "s2", Timestamp: base.Add(time.Hour), Weights: map[string]int{"a": 2}},
		{ID: "s1", Timestamp: base, Weights: map[string]int{"a": 1}},
	}
	for _, snapshot := range snapshots {
		if err := s.PutSnapshot(ctx, snapshot); err != nil {
			t.Fatalf("PutSnapshot() failed: %v", err)
		}
	}

	// Listed oldest first regardless of insertion order.
	listed, err := s.ListSnapshots(ctx)
	if err != nil {
		t.Fatalf("ListSnapshots() failed: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != "s1" || listed[1].ID != "s2" {
		t.Fatalf("ListSnapshots() order wrong: %v", listed)
	}

	got, err := s.GetSnapshot(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSnapshot() failed: %v", err)
	}
	if got == nil || got.Weights["a"] != 1 {
		t.Errorf("GetSnapshot(s1) = %v, want weights a=1", got)
	}

	// Mutating the returned snapshot must not touch storage.
	got.Weights["a"] = 99
	again, _ := s.GetSnapshot(ctx, "s1")
	if again.Weights["a"] != 1 {
		t.Errorf("stored weight = %d after mutating a copy, want 1", again.Weights["a"])
	}

	missing, err := s.GetSnapshot(ctx, "nope")
	if err != nil {
		t.Fatalf("GetSnapshot() failed: %v", err)
	}
	if missing != nil {
		t.Error("GetSnapshot(nope) should return nil")
	}

	if err := s.DeleteSnapshot(ctx, "s1"); err != nil {
		t.Fatalf("DeleteSnapshot() failed: %v", err)
	}
	if err := s.DeleteSnapshot(ctx, "s1"); err == nil {
		t.Error("DeleteSnapshot() of missing snapshot should fail")
	}
}
