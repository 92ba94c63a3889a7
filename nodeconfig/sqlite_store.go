package nodeconfig

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"ar-io-observer/report"
)

// SqliteConfig holds configuration for an embedded SQLite DB
type SqliteConfig struct {
	Path string // e.g., observer.db
}

type SqliteDb struct {
	config SqliteConfig
	db     *sql.DB
}

func NewSQLiteDb(cfg SqliteConfig) *SqliteDb {
	return &SqliteDb{config: cfg}
}

func (d *SqliteDb) BootstrapLocal(ctx context.Context) error {
	db, err := OpenSQLite(d.config)
	if err != nil {
		return err
	}
	if err := EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return err
	}
	d.db = db
	return nil
}

func (d *SqliteDb) GetDb() *sql.DB { return d.db }

// OpenSQLite opens an embedded SQLite database (in process)
func OpenSQLite(cfg SqliteConfig) (*sql.DB, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is empty")
	}
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetConnMaxLifetime(0)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL;"); err != nil {
		return nil, err
	}
	_, _ = db.ExecContext(context.Background(), "PRAGMA synchronous=NORMAL;")
	_, _ = db.ExecContext(context.Background(), "PRAGMA busy_timeout=5000;")
	return db, nil
}

// EnsureSchema creates the dynamic state tables.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmt := `
CREATE TABLE IF NOT EXISTS kv_state (
  key TEXT PRIMARY KEY,
  value_json TEXT NOT NULL,
  updated_at DATETIME NOT NULL DEFAULT (STRFTIME('%Y-%m-%d %H:%M:%f','now')),
  created_at DATETIME NOT NULL DEFAULT (STRFTIME('%Y-%m-%d %H:%M:%f','now'))
);

CREATE TABLE IF NOT EXISTS report_saves (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  epoch_start_height INTEGER NOT NULL,
  epoch_end_height INTEGER NOT NULL,
  report_tx_id TEXT NOT NULL DEFAULT '',
  interactions_json TEXT NOT NULL,
  failed_gateways INTEGER NOT NULL DEFAULT 0,
  saved_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_report_saves_epoch ON report_saves(epoch_start_height);`
	_, err := db.ExecContext(ctx, stmt)
	return err
}

// ReportSaveRecord is one pass of a report through the sink pipeline.
type ReportSaveRecord struct {
	ID               int64                       `json:"id"`
	EpochStartHeight int64                       `json:"epochStartHeight"`
	EpochEndHeight   int64                       `json:"epochEndHeight"`
	ReportTxID       string                      `json:"reportTxId,omitempty"`
	Interactions     []report.InteractionOutcome `json:"interactions"`
	FailedGateways   int                         `json:"failedGateways"`
	SavedAt          time.Time                   `json:"savedAt"`
}

func InsertReportSave(ctx context.Context, db *sql.DB, record ReportSaveRecord) (int64, error) {
	if db == nil {
		return 0, errors.New("db is nil")
	}
	interactions := record.Interactions
	if interactions == nil {
		interactions = []report.InteractionOutcome{}
	}
	bytes, err := json.Marshal(interactions)
	if err != nil {
		return 0, err
	}
	savedAt := record.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}
	res, err := db.ExecContext(ctx, `INSERT INTO report_saves(epoch_start_height, epoch_end_height, report_tx_id, interactions_json, failed_gateways, saved_at)
VALUES(?, ?, ?, ?, ?, ?)`,
		record.EpochStartHeight, record.EpochEndHeight, record.ReportTxID, string(bytes), record.FailedGateways, savedAt.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// HasPublishedReport reports whether a save carrying a report tx id exists
// for the epoch.
func HasPublishedReport(ctx context.Context, db *sql.DB, epochStartHeight int64) (bool, error) {
	if db == nil {
		return false, errors.New("db is nil")
	}
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(1) FROM report_saves WHERE epoch_start_height = ? AND report_tx_id != ''`, epochStartHeight).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListReportSaves returns the most recent saves first.
func ListReportSaves(ctx context.Context, db *sql.DB, limit int) ([]ReportSaveRecord, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `SELECT id, epoch_start_height, epoch_end_height, report_tx_id, interactions_json, failed_gateways, saved_at
FROM report_saves ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ReportSaveRecord, 0)
	for rows.Next() {
		var (
			r         ReportSaveRecord
			rawJSON   string
			savedAtMs int64
		)
		if err := rows.Scan(&r.ID, &r.EpochStartHeight, &r.EpochEndHeight, &r.ReportTxID, &rawJSON, &r.FailedGateways, &savedAtMs); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(rawJSON), &r.Interactions); err != nil {
			return nil, fmt.Errorf("unmarshal interactions for save %d: %w", r.ID, err)
		}
		r.SavedAt = time.UnixMilli(savedAtMs).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// KV helpers for dynamic state

// KVSetJSON upserts an arbitrary Go value encoded as JSON at the given key.
func KVSetJSON(ctx context.Context, db *sql.DB, key string, value any) error {
	if db == nil {
		return errors.New("db is nil")
	}
	bytes, err := json.Marshal(value)
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	q := `INSERT INTO kv_state(key, value_json) VALUES(?, ?)
ON CONFLICT(key) DO UPDATE SET value_json = excluded.value_json, updated_at = (STRFTIME('%Y-%m-%d %H:%M:%f','now'))`
	if _, err := tx.ExecContext(ctx, q, key, string(bytes)); err != nil {
		return err
	}
	return tx.Commit()
}

// KVGetJSON loads a key and unmarshals JSON into destPtr.
// If key not found, ok=false and no error is returned.
func KVGetJSON(ctx context.Context, db *sql.DB, key string, destPtr any) (ok bool, err error) {
	if db == nil {
		return false, errors.New("db is nil")
	}
	var raw string
	err = db.QueryRowContext(ctx, `SELECT value_json FROM kv_state WHERE key = ?`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), destPtr); err != nil {
		return false, fmt.Errorf("unmarshal json for key %s: %w", key, err)
	}
	return true, nil
}

func KVSetInt64(ctx context.Context, db *sql.DB, key string, v int64) error {
	return KVSetJSON(ctx, db, key, v)
}

// KVGetInt64 retrieves an int64. If missing, returns ok=false.
func KVGetInt64(ctx context.Context, db *sql.DB, key string) (val int64, ok bool, err error) {
	var tmp int64
	ok, err = KVGetJSON(ctx, db, key, &tmp)
	if !ok || err != nil {
		return 0, ok, err
	}
	return tmp, true, nil
}
