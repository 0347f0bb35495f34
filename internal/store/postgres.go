package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS plans (
        id TEXT PRIMARY KEY,
        tenant_id TEXT NOT NULL,
        name TEXT NOT NULL DEFAULT '',
        status TEXT NOT NULL,
        capacity INTEGER NOT NULL,
        vehicles INTEGER NOT NULL DEFAULT 0,
        total_distance DOUBLE PRECISION NOT NULL DEFAULT 0,
        best_restart INTEGER NOT NULL DEFAULT 0,
        points TEXT NOT NULL,
        routes TEXT NOT NULL,
        error TEXT NOT NULL DEFAULT '',
        created_ms BIGINT NOT NULL,
        updated_ms BIGINT NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS plans_tenant_id_idx ON plans (tenant_id, id)`,
	`CREATE TABLE IF NOT EXISTS plan_metrics (
        tenant_id TEXT NOT NULL,
        plan_id TEXT NOT NULL,
        best_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
        attempts INTEGER NOT NULL DEFAULT 0,
        metrics JSONB NOT NULL,
        created_ms BIGINT NOT NULL,
        PRIMARY KEY (tenant_id, plan_id)
    )`,
}

// Postgres stores plans through the pgx database/sql driver.
type Postgres struct {
	sqlStore
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{sqlStore{db: db, d: dialect{name: "postgres", numbered: true, schema: postgresSchema}, now: time.Now}}, nil
}
