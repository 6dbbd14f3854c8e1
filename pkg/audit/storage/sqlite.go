package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/MAQSOODAWANhaha/gem-proxy/pkg/audit"
)

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/audit.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStorage implements the audit.Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage creates a new SQLite storage backend.
// It initializes the database schema and enables WAL mode if configured.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	logger := slog.Default().With("component", "audit.storage.sqlite")

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "open", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite storage initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
		"max_open_conns", config.MaxOpenConns,
	)

	return s, nil
}

// initialize sets up the database schema and enables WAL mode.
func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return audit.NewStorageError("sqlite", "enable_wal", err)
		}
		s.logger.Debug("WAL mode enabled")
	}

	busyTimeoutMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		return audit.NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return audit.NewStorageError("sqlite", "create_schema", err)
	}
	s.logger.Debug("database schema created")

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return audit.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return audit.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return audit.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// AppendRecord persists a change record to the database. The UNIQUE
// constraints on id and version reject duplicates.
func (s *SQLiteStorage) AppendRecord(ctx context.Context, record *audit.ChangeRecord) error {
	query := `
		INSERT INTO change_records (
			id, version, timestamp,
			key_id, old_weight, new_weight,
			operation, source, operator, reason, batch_id, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var metadata interface{}
	if len(record.Metadata) > 0 {
		encoded, err := json.Marshal(record.Metadata)
		if err != nil {
			return audit.NewStorageError("sqlite", "append", err)
		}
		metadata = string(encoded)
	}

	_, err := s.db.ExecContext(ctx, query,
		record.ID, record.Version, record.Timestamp,
		record.KeyID, record.OldWeight, record.NewWeight,
		string(record.Operation), string(record.Source), record.Operator, record.Reason, record.BatchID, metadata,
	)
	if err != nil {
		return audit.NewStorageError("sqlite", "append", err)
	}

	return nil
}

// QueryRecords retrieves change records matching the query filters.
func (s *SQLiteStorage) QueryRecords(ctx context.Context, query *audit.Query) ([]*audit.ChangeRecord, error) {
	whereClause, args := buildWhereClause(query)

	sqlQuery := "SELECT id, version, timestamp, key_id, old_weight, new_weight, operation, source, operator, reason, batch_id, metadata FROM change_records"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}

	// Newest first unless ascending was asked for explicitly.
	order := "DESC"
	if query.SortOrder == "asc" {
		order = "ASC"
	}
	sqlQuery += " ORDER BY version " + order

	if query.Limit > 0 {
		sqlQuery += fmt.Sprintf(" LIMIT %d", query.Limit)
	} else if query.Offset > 0 {
		// SQLite requires LIMIT when OFFSET is used.
		sqlQuery += " LIMIT -1"
	}
	if query.Offset > 0 {
		sqlQuery += fmt.Sprintf(" OFFSET %d", query.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	records := []*audit.ChangeRecord{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, audit.NewStorageError("sqlite", "scan", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, audit.NewStorageError("sqlite", "query", err)
	}

	return records, nil
}

// CountRecords returns the number of records matching the query filters.
func (s *SQLiteStorage) CountRecords(ctx context.Context, query *audit.Query) (int64, error) {
	whereClause, args := buildWhereClause(query)

	sqlQuery := "SELECT COUNT(*) FROM change_records"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&count); err != nil {
		return 0, audit.NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// MaxVersion returns the highest version stored, or 0 when empty.
func (s *SQLiteStorage) MaxVersion(ctx context.Context) (int64, error) {
	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT MAX(version) FROM change_records").Scan(&max)
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "max_version", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return max.Int64, nil
}

// DeleteRecordsBefore removes records older than the cutoff.
func (s *SQLiteStorage) DeleteRecordsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM change_records WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "delete", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "delete", err)
	}
	return count, nil
}

// TrimRecords removes the oldest records so that at most keep remain.
func (s *SQLiteStorage) TrimRecords(ctx context.Context, keep int) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM change_records WHERE version NOT IN (
			SELECT version FROM change_records ORDER BY version DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "trim", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "trim", err)
	}
	return count, nil
}

// PutSnapshot persists a snapshot. Weights are stored as JSON.
func (s *SQLiteStorage) PutSnapshot(ctx context.Context, snapshot *audit.Snapshot) error {
	weights, err := json.Marshal(snapshot.Weights)
	if err != nil {
		return audit.NewStorageError("sqlite", "put_snapshot", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, timestamp, version, weights, description, operator)
		VALUES (?, ?, ?, ?, ?, ?)`,
		snapshot.ID, snapshot.Timestamp, snapshot.Version, string(weights), snapshot.Description, snapshot.Operator,
	)
	if err != nil {
		return audit.NewStorageError("sqlite", "put_snapshot", err)
	}
	return nil
}

// GetSnapshot retrieves a snapshot by ID. Returns nil when not found.
func (s *SQLiteStorage) GetSnapshot(ctx context.Context, id string) (*audit.Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, timestamp, version, weights, description, operator FROM snapshots WHERE id = ?", id)

	snapshot, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "get_snapshot", err)
	}
	return snapshot, nil
}

// ListSnapshots returns all snapshots ordered oldest first.
func (s *SQLiteStorage) ListSnapshots(ctx context.Context) ([]*audit.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, timestamp, version, weights, description, operator FROM snapshots ORDER BY timestamp ASC")
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "list_snapshots", err)
	}
	defer rows.Close()

	snapshots := []*audit.Snapshot{}
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, audit.NewStorageError("sqlite", "scan", err)
		}
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, audit.NewStorageError("sqlite", "list_snapshots", err)
	}
	return snapshots, nil
}

// DeleteSnapshot removes a snapshot by ID.
func (s *SQLiteStorage) DeleteSnapshot(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE id = ?", id)
	if err != nil {
		return audit.NewStorageError("sqlite", "delete_snapshot", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return audit.NewStorageError("sqlite", "delete_snapshot", err)
	}
	if count == 0 {
		return audit.NewStorageError("sqlite", "delete_snapshot", fmt.Errorf("snapshot %s not found", id))
	}
	return nil
}

// Close releases resources held by the storage backend.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return audit.NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("SQLite storage closed")
	return nil
}

// buildWhereClause translates query filters into a WHERE clause and args.
func buildWhereClause(query *audit.Query) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if query.StartTime != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, *query.StartTime)
	}
	if query.EndTime != nil {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, *query.EndTime)
	}
	if query.KeyID != "" {
		conditions = append(conditions, "key_id = ?")
		args = append(args, query.KeyID)
	}
	if query.Operation != "" {
		conditions = append(conditions, "operation = ?")
		args = append(args, string(query.Operation))
	}
	if query.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, string(query.Source))
	}
	if query.Operator != "" {
		// Substring match, mirroring the memory backend.
		conditions = append(conditions, "operator LIKE '%' || ? || '%'")
		args = append(args, query.Operator)
	}
	if query.BatchID != "" {
		conditions = append(conditions, "batch_id = ?")
		args = append(args, query.BatchID)
	}
	if query.MinVersion != nil {
		conditions = append(conditions, "version >= ?")
		args = append(args, *query.MinVersion)
	}
	if query.MaxVersion != nil {
		conditions = append(conditions, "version <= ?")
		args = append(args, *query.MaxVersion)
	}

	return strings.Join(conditions, " AND "), args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord scans one change record row.
func scanRecord(row rowScanner) (*audit.ChangeRecord, error) {
	var record audit.ChangeRecord
	var operation, source string
	var operator, reason, batchID, metadata sql.NullString

	err := row.Scan(
		&record.ID, &record.Version, &record.Timestamp,
		&record.KeyID, &record.OldWeight, &record.NewWeight,
		&operation, &source, &operator, &reason, &batchID, &metadata,
	)
	if err != nil {
		return nil, err
	}

	record.Operation = audit.OperationType(operation)
	record.Source = audit.ChangeSource(source)
	record.Operator = operator.String
	record.Reason = reason.String
	record.BatchID = batchID.String
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &record.Metadata); err != nil {
			return nil, fmt.Errorf("decode record metadata: %w", err)
		}
	}

	return &record, nil
}

// scanSnapshot scans one snapshot row, decoding the weights JSON.
func scanSnapshot(row rowScanner) (*audit.Snapshot, error) {
	var snapshot audit.Snapshot
	var weights string
	var description, operator sql.NullString

	err := row.Scan(&snapshot.ID, &snapshot.Timestamp, &snapshot.Version, &weights, &description, &operator)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(weights), &snapshot.Weights); err != nil {
		return nil, fmt.Errorf("decode snapshot weights: %w", err)
	}
	snapshot.Description = description.String
	snapshot.Operator = operator.String

	return &snapshot, nil
}
