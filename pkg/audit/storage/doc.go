// Package storage provides storage backends for the audit log.
//
// Two backends are implemented:
//
//   - MemoryStorage: in-memory, for tests and ephemeral deployments
//   - SQLiteStorage: durable single-node storage with WAL mode
//
// Both satisfy the audit.Storage interface and are safe for concurrent
// use. Records are ordered by their version number; the backends never
// assign versions themselves.
package storage
