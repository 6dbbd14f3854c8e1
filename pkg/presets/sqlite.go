package presets

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore persists presets in a SQLite database. It uses WAL mode
// and a single writer connection, which is all SQLite supports anyway.
type SQLiteStore struct {
	db        *sql.DB
	mu        sync.RWMutex
	closeOnce sync.Once

	saveStmt   *sql.Stmt
	getStmt    *sql.Stmt
	byNameStmt *sql.Stmt
	listStmt   *sql.Stmt
	deleteStmt *sql.Stmt
}

// SQLiteStoreConfig configures the SQLite preset store.
type SQLiteStoreConfig struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds.
	BusyTimeout time.Duration
}

// NewSQLiteStore opens a preset store with default settings.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithConfig(SQLiteStoreConfig{Path: path})
}

// NewSQLiteStoreWithConfig opens a preset store with custom settings.
func NewSQLiteStoreWithConfig(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.Path, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := store.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS weight_presets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT,
		weights TEXT NOT NULL,
		created_by TEXT,
		tags TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_weight_presets_name ON weight_presets(name);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.saveStmt, err = s.db.Prepare(`
		INSERT INTO weight_presets (id, name, description, weights, created_by, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			weights = excluded.weights,
			created_by = excluded.created_by,
			tags = excluded.tags,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare save statement: %w", err)
	}

	const columns = "id, name, description, weights, created_by, tags, created_at, updated_at"

	s.getStmt, err = s.db.Prepare(`SELECT ` + columns + ` FROM weight_presets WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare get statement: %w", err)
	}

	s.byNameStmt, err = s.db.Prepare(`SELECT ` + columns + ` FROM weight_presets WHERE name = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare name lookup statement: %w", err)
	}

	s.listStmt, err = s.db.Prepare(`SELECT ` + columns + ` FROM weight_presets ORDER BY name`)
	if err != nil {
		return fmt.Errorf("failed to prepare list statement: %w", err)
	}

	s.deleteStmt, err = s.db.Prepare(`DELETE FROM weight_presets WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}

	return nil
}

// Save inserts or updates a preset.
func (s *SQLiteStore) Save(ctx context.Context, preset *WeightPreset) error {
	if err := preset.Validate(); err != nil {
		return err
	}

	weightsJSON, err := json.Marshal(preset.Weights)
	if err != nil {
		return fmt.Errorf("failed to marshal weights: %w", err)
	}
	var tagsJSON []byte
	if len(preset.Tags) > 0 {
		tagsJSON, err = json.Marshal(preset.Tags)
		if err != nil {
			return fmt.Errorf("failed to marshal tags: %w", err)
		}
	}

	createdAt := preset.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.saveStmt.ExecContext(ctx,
		preset.ID,
		preset.Name,
		preset.Description,
		string(weightsJSON),
		preset.CreatedBy,
		string(tagsJSON),
		createdAt.Unix(),
		time.Now().Unix(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: weight_presets.name") {
			return &DuplicateNameError{Name: preset.Name}
		}
		return fmt.Errorf("failed to save preset: %w", err)
	}
	return nil
}

// Get returns a preset by ID, or nil when absent.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*WeightPreset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scanOne(s.getStmt.QueryRowContext(ctx, id))
}

// GetByName returns a preset by name, or nil when absent.
func (s *SQLiteStore) GetByName(ctx context.Context, name string) (*WeightPreset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scanOne(s.byNameStmt.QueryRowContext(ctx, name))
}

// List returns all presets ordered by name.
func (s *SQLiteStore) List(ctx context.Context) ([]*WeightPreset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.listStmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list presets: %w", err)
	}
	defer rows.Close()

	var presets []*WeightPreset
	for rows.Next() {
		preset, err := scanPreset(rows)
		if err != nil {
			return nil, err
		}
		presets = append(presets, preset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return presets, nil
}

// Delete removes a preset by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.deleteStmt.ExecContext(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete preset: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return &NotFoundError{ID: id}
	}
	return nil
}

// Close releases the database. It is safe to call more than once.
func (s *SQLiteStore) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		for _, stmt := range []*sql.Stmt{s.saveStmt, s.getStmt, s.byNameStmt, s.listStmt, s.deleteStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		if s.db != nil {
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			closeErr = s.db.Close()
		}
	})
	return closeErr
}

func (s *SQLiteStore) scanOne(row *sql.Row) (*WeightPreset, error) {
	preset, err := scanPreset(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return preset, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPreset(row rowScanner) (*WeightPreset, error) {
	var (
		preset      WeightPreset
		description sql.NullString
		weightsJSON string
		createdBy   sql.NullString
		tagsJSON    sql.NullString
		createdAt   int64
		updatedAt   int64
	)
	err := row.Scan(&preset.ID, &preset.Name, &description, &weightsJSON, &createdBy, &tagsJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan preset: %w", err)
	}

	preset.Description = description.String
	preset.CreatedBy = createdBy.String
	preset.CreatedAt = time.Unix(createdAt, 0)
	preset.UpdatedAt = time.Unix(updatedAt, 0)

	if err := json.Unmarshal([]byte(weightsJSON), &preset.Weights); err != nil {
		return nil, fmt.Errorf("failed to unmarshal weights: %w", err)
	}
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &preset.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}
	return &preset, nil
}
