package store

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS plans (
        id TEXT PRIMARY KEY,
        tenant_id TEXT NOT NULL,
        name TEXT NOT NULL DEFAULT '',
        status TEXT NOT NULL,
        capacity INTEGER NOT NULL,
        vehicles INTEGER NOT NULL DEFAULT 0,
        total_distance REAL NOT NULL DEFAULT 0,
        best_restart INTEGER NOT NULL DEFAULT 0,
        points TEXT NOT NULL,
        routes TEXT NOT NULL,
        error TEXT NOT NULL DEFAULT '',
        created_ms INTEGER NOT NULL,
        updated_ms INTEGER NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS plans_tenant_id_idx ON plans (tenant_id, id)`,
	`CREATE TABLE IF NOT EXISTS plan_metrics (
        tenant_id TEXT NOT NULL,
        plan_id TEXT NOT NULL,
        best_cost REAL NOT NULL DEFAULT 0,
        attempts INTEGER NOT NULL DEFAULT 0,
        metrics TEXT NOT NULL,
        created_ms INTEGER NOT NULL,
        PRIMARY KEY (tenant_id, plan_id)
    )`,
}

// SQLite is a file-backed plan archive for local batch runs.
type SQLite struct {
	sqlStore
}

// NewSQLite opens (or creates) the database at path and migrates it. Use
// ":memory:" for a throwaway archive.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection serialises writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	s := &SQLite{sqlStore{db: db, d: dialect{name: "sqlite", schema: sqliteSchema}, now: time.Now}}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
