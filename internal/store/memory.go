package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"cvrpplan/internal/model"
	"cvrpplan/internal/opt"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu      sync.Mutex
	plans   map[string]model.Plan // id -> plan
	byTen   map[string][]string   // tenant -> plan ids, sorted
	metrics map[string]opt.Metrics
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		plans:   map[string]model.Plan{},
		byTen:   map[string][]string{},
		metrics: map[string]opt.Metrics{},
		now:     time.Now,
	}
}

func (m *Memory) CreatePlan(ctx context.Context, p model.Plan) (model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return p, err
		}
		p.ID = id.String()
	}
	now := m.now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if _, ok := m.plans[p.ID]; !ok {
		ids := m.byTen[p.TenantID]
		m.byTen[p.TenantID] = slices.Insert(ids, sort.SearchStrings(ids, p.ID), p.ID)
	}
	m.plans[p.ID] = clonePlan(p)
	return p, nil
}

func (m *Memory) UpdatePlan(ctx context.Context, p model.Plan) (model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.plans[p.ID]
	if !ok || cur.TenantID != p.TenantID {
		return p, ErrNotFound
	}
	p.CreatedAt = cur.CreatedAt
	p.UpdatedAt = m.now().UTC()
	m.plans[p.ID] = clonePlan(p)
	return p, nil
}

func (m *Memory) GetPlan(ctx context.Context, tenantID, id string) (model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok || p.TenantID != tenantID {
		return model.Plan{}, ErrNotFound
	}
	return clonePlan(p), nil
}

func (m *Memory) ListPlans(ctx context.Context, tenantID, cursor string, limit int) ([]model.Plan, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.byTen[tenantID]
	// The page starts after cursor even when it names no plan.
	start := sort.Search(len(ids), func(i int) bool { return ids[i] > cursor })
	limit = clampLimit(limit)
	end := min(start+limit, len(ids))
	out := make([]model.Plan, 0, end-start)
	for _, id := range ids[start:end] {
		out = append(out, clonePlan(m.plans[id]))
	}
	next := ""
	if end < len(ids) {
		next = ids[end-1]
	}
	return out, next, nil
}

func (m *Memory) SavePlanMetrics(ctx context.Context, tenantID, planID string, mx opt.Metrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics[tenantID+"|"+planID] = mx
	return nil
}

func (m *Memory) GetPlanMetrics(ctx context.Context, tenantID, planID string) (opt.Metrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mx, ok := m.metrics[tenantID+"|"+planID]
	if !ok {
		return opt.Metrics{}, ErrNotFound
	}
	return mx, nil
}

func clonePlan(p model.Plan) model.Plan {
	p.Points = append([]opt.Point(nil), p.Points...)
	routes := make([]opt.Route, len(p.Routes))
	for i, r := range p.Routes {
		r.Stops = append([]int(nil), r.Stops...)
		routes[i] = r
	}
	p.Routes = routes
	return p
}
