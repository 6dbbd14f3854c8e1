// Package audit provides an append-only change history for key pool
// weight management. Every weight mutation is recorded as an immutable
// ChangeRecord with a globally increasing version number, enabling
// forensics, statistics, and rollback by replay.
//
// # Architecture
//
// The audit system consists of three layers:
//
//  1. Audit Log - Appends change records and assigns versions
//  2. Storage Backend - Persists records and snapshots (memory, SQLite)
//  3. Query Engine - Retrieves, filters, and aggregates records
//
// # Change Records
//
// Each change record captures:
//   - Key identifier and the old and new weight values
//   - Operation type (manual, intelligent, batch, rollback, automatic)
//   - Change source (web UI, API, config file, optimizer, monitor)
//   - Operator identity and a free-form reason
//   - Batch correlation ID for multi-key operations
//
// Records never contain key secret material. Only identifiers and
// weight values cross the audit boundary.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{
//	    Path:    "data/audit.db",
//	    WALMode: true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	auditLog, err := audit.NewLog(store, &audit.Config{
//	    MaxRecords:   10000,
//	    MaxSnapshots: 50,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Record a weight change.
//	auditLog.RecordChange(ctx, &audit.Change{
//	    KeyID:     "key-1",
//	    OldWeight: 100,
//	    NewWeight: 250,
//	    Operation: audit.OperationManual,
//	    Source:    audit.SourceAPI,
//	    Operator:  "admin",
//	    Reason:    "traffic rebalance",
//	})
//
// # Snapshots and Rollback
//
// A snapshot freezes the weight of every key at a point in time.
// Rollback computes the weight set to restore and records one Rollback
// change per key; applying the weights to the pool is the caller's job,
// so the audit log stays free of scheduling concerns.
//
// # Retention
//
// Old records are pruned by age and by count. Pruning is best-effort:
// failures are logged and never surface to the caller of RecordChange.
package audit
