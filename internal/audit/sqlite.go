package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// SQLiteStore writes audit records to a local SQLite file. Used for
// development runs without a PostgreSQL instance.
type SQLiteStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewSQLiteStore opens (creating if needed) the audit database at path.
func NewSQLiteStore(path string, logger *logrus.Logger) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}

	// WAL mode so readers never block the writer
	db.Exec("PRAGMA journal_mode = WAL")

	store := &SQLiteStore{db: db, logger: logger}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init audit schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS graph_audit (
		id            TEXT PRIMARY KEY,
		operation_id  TEXT NOT NULL,
		node_id       TEXT NOT NULL,
		node_kind     TEXT NOT NULL,
		operation     TEXT NOT NULL,
		old_snapshot  BLOB,
		new_snapshot  BLOB,
		source        TEXT NOT NULL,
		elapsed_ms    INTEGER NOT NULL,
		created_at    DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_graph_audit_node ON graph_audit (node_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_graph_audit_operation ON graph_audit (operation_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Record(ctx context.Context, record Record) error {
	query := `
		INSERT INTO graph_audit (id, operation_id, node_id, node_kind, operation,
			old_snapshot, new_snapshot, source, elapsed_ms, created_at)
		VALUES (:id, :operation_id, :node_id, :node_kind, :operation,
			:old_snapshot, :new_snapshot, :source, :elapsed_ms, :created_at)
	`

	_, err := s.db.NamedExecContext(ctx, query, record)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}

	return nil
}

// RecordsForNode returns the trail for one node, newest first.
func (s *SQLiteStore) RecordsForNode(ctx context.Context, nodeID string, limit int) ([]Record, error) {
	var records []Record
	query := `SELECT * FROM graph_audit WHERE node_id = ? ORDER BY created_at DESC LIMIT ?`

	if err := s.db.SelectContext(ctx, &records, query, nodeID, limit); err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}

	return records, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
