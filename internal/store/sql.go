package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"cvrpplan/internal/model"
	"cvrpplan/internal/opt"
)

// dialect carries what differs between the SQL backends.
type dialect struct {
	name string
	// numbered rewrites ? placeholders to $1, $2, ...
	numbered bool
	schema   []string
}

// sqlStore implements Store over database/sql. Points, routes and metrics are
// stored as JSON text; timestamps as Unix milliseconds.
type sqlStore struct {
	db  *sql.DB
	d   dialect
	now func() time.Time
}

func (s *sqlStore) q(query string) string {
	if !s.d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Migrate creates the plan tables when missing.
func (s *sqlStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.d.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s migrate: %w", s.d.name, err)
		}
	}
	return nil
}

func (s *sqlStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *sqlStore) Close() error { return s.db.Close() }

const planColumns = `id, tenant_id, name, status, capacity, vehicles, total_distance, best_restart, points, routes, error, created_ms, updated_ms`

func (s *sqlStore) CreatePlan(ctx context.Context, p model.Plan) (model.Plan, error) {
	if p.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return p, err
		}
		p.ID = id.String()
	}
	now := s.now().UTC().Truncate(time.Millisecond)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	points, routes, err := encodePlan(p)
	if err != nil {
		return p, err
	}
	_, err = s.db.ExecContext(ctx, s.q(`INSERT INTO plans (`+planColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`),
		p.ID, p.TenantID, p.Name, p.Status, p.Capacity, p.Vehicles, p.TotalDistance, p.BestRestart,
		points, routes, p.Error, p.CreatedAt.UnixMilli(), p.UpdatedAt.UnixMilli())
	if err != nil {
		return p, err
	}
	return p, nil
}

func (s *sqlStore) UpdatePlan(ctx context.Context, p model.Plan) (model.Plan, error) {
	p.UpdatedAt = s.now().UTC().Truncate(time.Millisecond)
	points, routes, err := encodePlan(p)
	if err != nil {
		return p, err
	}
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE plans SET name=?, status=?, capacity=?, vehicles=?, total_distance=?, best_restart=?, points=?, routes=?, error=?, updated_ms=?
        WHERE tenant_id=? AND id=?`),
		p.Name, p.Status, p.Capacity, p.Vehicles, p.TotalDistance, p.BestRestart, points, routes, p.Error, p.UpdatedAt.UnixMilli(),
		p.TenantID, p.ID)
	if err != nil {
		return p, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return p, ErrNotFound
	}
	return s.GetPlan(ctx, p.TenantID, p.ID)
}

func (s *sqlStore) GetPlan(ctx context.Context, tenantID, id string) (model.Plan, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+planColumns+` FROM plans WHERE tenant_id=? AND id=?`), tenantID, id)
	p, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

func (s *sqlStore) ListPlans(ctx context.Context, tenantID, cursor string, limit int) ([]model.Plan, string, error) {
	limit = clampLimit(limit)
	var rows *sql.Rows
	var err error
	if cursor != "" {
		rows, err = s.db.QueryContext(ctx, s.q(`SELECT `+planColumns+` FROM plans WHERE tenant_id=? AND id > ? ORDER BY id LIMIT ?`), tenantID, cursor, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, s.q(`SELECT `+planColumns+` FROM plans WHERE tenant_id=? ORDER BY id LIMIT ?`), tenantID, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Plan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	next := ""
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (s *sqlStore) SavePlanMetrics(ctx context.Context, tenantID, planID string, m opt.Metrics) error {
	js, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.q(`INSERT INTO plan_metrics (tenant_id, plan_id, best_cost, attempts, metrics, created_ms) VALUES (?,?,?,?,?,?)
        ON CONFLICT (tenant_id, plan_id) DO UPDATE SET best_cost=excluded.best_cost, attempts=excluded.attempts, metrics=excluded.metrics, created_ms=excluded.created_ms`),
		tenantID, planID, m.BestCost, m.Attempts, string(js), s.now().UnixMilli())
	return err
}

func (s *sqlStore) GetPlanMetrics(ctx context.Context, tenantID, planID string) (opt.Metrics, error) {
	var js string
	var m opt.Metrics
	err := s.db.QueryRowContext(ctx, s.q(`SELECT metrics FROM plan_metrics WHERE tenant_id=? AND plan_id=?`), tenantID, planID).Scan(&js)
	if errors.Is(err, sql.ErrNoRows) {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	return m, json.Unmarshal([]byte(js), &m)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlan(sc scanner) (model.Plan, error) {
	var p model.Plan
	var points, routes string
	var created, updated int64
	if err := sc.Scan(&p.ID, &p.TenantID, &p.Name, &p.Status, &p.Capacity, &p.Vehicles, &p.TotalDistance, &p.BestRestart,
		&points, &routes, &p.Error, &created, &updated); err != nil {
		return p, err
	}
	if err := json.Unmarshal([]byte(points), &p.Points); err != nil {
		return p, fmt.Errorf("plan %s points: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(routes), &p.Routes); err != nil {
		return p, fmt.Errorf("plan %s routes: %w", p.ID, err)
	}
	p.CreatedAt = time.UnixMilli(created).UTC()
	p.UpdatedAt = time.UnixMilli(updated).UTC()
	return p, nil
}

func encodePlan(p model.Plan) (string, string, error) {
	if p.Points == nil {
		p.Points = []opt.Point{}
	}
	if p.Routes == nil {
		p.Routes = []opt.Route{}
	}
	points, err := json.Marshal(p.Points)
	if err != nil {
		return "", "", err
	}
	routes, err := json.Marshal(p.Routes)
	if err != nil {
		return "", "", err
	}
	return string(points), string(routes), nil
}
