package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the audit database schema.
const Schema = `
-- Change records table
CREATE TABLE IF NOT EXISTS change_records (
    id TEXT PRIMARY KEY,
    version INTEGER NOT NULL UNIQUE,

    timestamp TIMESTAMP NOT NULL,

    -- Change content
    key_id TEXT NOT NULL,
    old_weight INTEGER NOT NULL,
    new_weight INTEGER NOT NULL,

    -- Provenance
    operation TEXT NOT NULL,
    source TEXT NOT NULL,
    operator TEXT,
    reason TEXT,
    batch_id TEXT,

    -- Free-form context as a JSON object; rollback records carry the
    -- replayed snapshot id here.
    metadata TEXT
);

-- Snapshots table
CREATE TABLE IF NOT EXISTS snapshots (
    id TEXT PRIMARY KEY,
    timestamp TIMESTAMP NOT NULL,
    version INTEGER NOT NULL,
    weights TEXT NOT NULL,
    description TEXT,
    operator TEXT
);

-- Schema version table
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

-- Indexes for common queries
CREATE INDEX IF NOT EXISTS idx_change_records_version ON change_records(version);
CREATE INDEX IF NOT EXISTS idx_change_records_timestamp ON change_records(timestamp);
CREATE INDEX IF NOT EXISTS idx_change_records_key_id ON change_records(key_id);
CREATE INDEX IF NOT EXISTS idx_change_records_operation ON change_records(operation);
CREATE INDEX IF NOT EXISTS idx_change_records_source ON change_records(source);
CREATE INDEX IF NOT EXISTS idx_change_records_batch_id ON change_records(batch_id);
CREATE INDEX IF NOT EXISTS idx_snapshots_timestamp ON snapshots(timestamp);
`

// InsertSchemaVersion inserts the schema version into the schema_version table.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version from the database.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`
