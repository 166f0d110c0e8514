package audit

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS graph_audit (
	id            TEXT PRIMARY KEY,
	operation_id  TEXT NOT NULL,
	node_id       TEXT NOT NULL,
	node_kind     TEXT NOT NULL,
	operation     TEXT NOT NULL,
	old_snapshot  JSONB,
	new_snapshot  JSONB,
	source        TEXT NOT NULL,
	elapsed_ms    BIGINT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_graph_audit_node ON graph_audit (node_id, created_at);
CREATE INDEX IF NOT EXISTS idx_graph_audit_operation ON graph_audit (operation_id);
`

// PostgresStore writes audit records to PostgreSQL.
type PostgresStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPostgresStore connects and ensures the audit schema exists.
func NewPostgresStore(dsn string, logger *logrus.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init audit schema: %w", err)
	}

	return &PostgresStore{db: db, logger: logger}, nil
}

func (s *PostgresStore) Record(ctx context.Context, record Record) error {
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
func (s *PostgresStore) RecordsForNode(ctx context.Context, nodeID string, limit int) ([]Record, error) {
	var records []Record
	query := `SELECT * FROM graph_audit WHERE node_id = $1 ORDER BY created_at DESC LIMIT $2`

	if err := s.db.SelectContext(ctx, &records, query, nodeID, limit); err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}

	return records, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
