// Package store provides the durable local record cache for the sync core.
//
// The store is the only component that survives process restarts and total
// network loss. It persists per-(table, user) record lists in an embedded
// SQLite database opened in WAL mode, so readers on one table never contend
// with writers on another.
//
// The cache content for a (table, user) pair is always the union of the last
// known remote snapshot and locally pending mutations: Save replaces the
// snapshot wholesale, Append and Remove handle single-record mutations, and
// Unsynced selects the pending set for reconciliation.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/umer2k200/lifesync/internal/record"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB wraps the SQLite connection holding the record cache.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates or opens the record cache at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// The caller MUST call Close() when done to ensure proper cleanup.
//
// Example:
//
//	cache, err := store.Open(".lifesync/cache.db")
//	if err != nil {
//	    return err
//	}
//	defer cache.Close()
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn, path: path}

	// WAL mode for concurrent readers during writes
	if _, err := db.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Path returns the filesystem location of the cache database.
func (db *DB) Path() string {
	return db.path
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close cache database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the cache schema if it doesn't exist.
//
// All application tables share one physical table keyed by
// (tbl, user_id, id); the field map is stored as a JSON column and the
// synced flag is lifted into its own indexed column so the pending-record
// query never parses JSON. Idempotent - safe to call multiple times.
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		tbl        TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		id         TEXT NOT NULL,
		synced     INTEGER NOT NULL DEFAULT 0,
		fields     TEXT NOT NULL,  -- JSON object
		updated_at TEXT NOT NULL,
		PRIMARY KEY (tbl, user_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_records_pending
	    ON records(tbl, user_id, synced);
	CREATE INDEX IF NOT EXISTS idx_records_user ON records(user_id);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// Load returns all records for a (table, user) pair in insertion order.
// A table/user with nothing persisted yet yields an empty slice, not an
// error.
func (db *DB) Load(ctx context.Context, table, userID string) ([]record.Record, error) {
	query := `
	SELECT id, synced, fields
	FROM records
	WHERE tbl = ? AND user_id = ?
	ORDER BY rowid ASC
	`

	rows, err := db.conn.QueryContext(ctx, query, table, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load records for %s: %w", table, err)
	}
	defer rows.Close()

	return scanRecords(rows, userID)
}

// Get retrieves a single record by id.
// Returns (nil, nil) if the record doesn't exist.
func (db *DB) Get(ctx context.Context, table, userID, id string) (record.Record, error) {
	query := `
	SELECT id, synced, fields
	FROM records
	WHERE tbl = ? AND user_id = ? AND id = ?
	`

	row := db.conn.QueryRowContext(ctx, query, table, userID, id)

	rec, err := scanRecord(row.Scan, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s/%s: %w", table, id, err)
	}
	return rec, nil
}

// Save replaces the entire persisted set for a (table, user) pair.
// Used after a remote fetch returns an authoritative snapshot.
func (db *DB) Save(ctx context.Context, table, userID string, recs []record.Record) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM records WHERE tbl = ? AND user_id = ?`, table, userID); err != nil {
		return fmt.Errorf("failed to clear %s snapshot: %w", table, err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, rec := range recs {
		payload, err := marshalFields(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal record %s: %w", rec.ID(), err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO records (tbl, user_id, id, synced, fields, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			table, userID, rec.ID(), boolToInt(rec.Synced()), payload, now); err != nil {
			return fmt.Errorf("failed to insert record %s: %w", rec.ID(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}

	return nil
}

// Append adds or replaces a single record by id.
func (db *DB) Append(ctx context.Context, table, userID string, rec record.Record) error {
	payload, err := marshalFields(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", rec.ID(), err)
	}

	query := `
	INSERT INTO records (tbl, user_id, id, synced, fields, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(tbl, user_id, id) DO UPDATE SET
		synced = excluded.synced,
		fields = excluded.fields,
		updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = db.conn.ExecContext(ctx, query,
		table, userID, rec.ID(), boolToInt(rec.Synced()), payload, now)
	if err != nil {
		return fmt.Errorf("failed to append record %s/%s: %w", table, rec.ID(), err)
	}

	return nil
}

// Remove deletes a record by id.
// Returns nil if the record doesn't exist (idempotent).
func (db *DB) Remove(ctx context.Context, table, userID, id string) error {
	query := `DELETE FROM records WHERE tbl = ? AND user_id = ? AND id = ?`
	if _, err := db.conn.ExecContext(ctx, query, table, userID, id); err != nil {
		return fmt.Errorf("failed to remove record %s/%s: %w", table, id, err)
	}
	return nil
}

// Unsynced returns the records for a (table, user) pair that the remote
// store has not acknowledged yet, in insertion order.
func (db *DB) Unsynced(ctx context.Context, table, userID string) ([]record.Record, error) {
	query := `
	SELECT id, synced, fields
	FROM records
	WHERE tbl = ? AND user_id = ? AND synced = 0
	ORDER BY rowid ASC
	`

	rows, err := db.conn.QueryContext(ctx, query, table, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending records for %s: %w", table, err)
	}
	defer rows.Close()

	return scanRecords(rows, userID)
}

// PendingCounts returns the number of unacknowledged records per table for
// a user. Tables with nothing pending are absent from the map.
func (db *DB) PendingCounts(ctx context.Context, userID string) (map[string]int, error) {
	query := `
	SELECT tbl, COUNT(*)
	FROM records
	WHERE user_id = ? AND synced = 0
	GROUP BY tbl
	`

	rows, err := db.conn.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending records: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var table string
		var n int
		if err := rows.Scan(&table, &n); err != nil {
			return nil, fmt.Errorf("failed to scan pending count: %w", err)
		}
		counts[table] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending counts: %w", err)
	}

	return counts, nil
}

// scanRecords collects records from a multi-row result set.
func scanRecords(rows *sql.Rows, userID string) ([]record.Record, error) {
	var recs []record.Record

	for rows.Next() {
		rec, err := scanRecord(rows.Scan, userID)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return recs, nil
}

// scanRecord rebuilds a record from one row. The id, user_id, and synced
// columns are authoritative over whatever the JSON payload carries.
func scanRecord(scan func(...any) error, userID string) (record.Record, error) {
	var id string
	var synced int
	var payload string

	if err := scan(&id, &synced, &payload); err != nil {
		return nil, err
	}

	rec := record.Record{}
	if payload != "" && payload != "null" {
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record %s: %w", id, err)
		}
	}

	rec[record.FieldID] = id
	rec[record.FieldUserID] = userID
	rec.SetSynced(synced != 0)

	return rec, nil
}

// marshalFields serializes the record's field map. The synced flag lives in
// its own column and is stripped from the payload.
func marshalFields(rec record.Record) (string, error) {
	payload, err := json.Marshal(rec.WithoutSynced())
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
