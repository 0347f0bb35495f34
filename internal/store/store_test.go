package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"cvrpplan/internal/model"
	"cvrpplan/internal/opt"
)

func newSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func samplePlan(tenant string) model.Plan {
	return model.Plan{
		TenantID: tenant,
		Name:     "r1.csv",
		Status:   model.PlanQueued,
		Capacity: 100,
		Points:   []opt.Point{{}, {X: 3, Y: 4, Demand: 10}},
	}
}

// exerciseStore runs the behaviour every Store implementation shares.
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	p, err := s.CreatePlan(ctx, samplePlan("t1"))
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if p.ID == "" || p.CreatedAt.IsZero() {
		t.Fatalf("CreatePlan should assign id and timestamps: %+v", p)
	}

	got, err := s.GetPlan(ctx, "t1", p.ID)
	if err != nil {
		t.Fatalf("GetPlan: %v", err)
	}
	if got.Status != model.PlanQueued || len(got.Points) != 2 || got.Points[1].Demand != 10 {
		t.Fatalf("unexpected plan: %+v", got)
	}
	if _, err := s.GetPlan(ctx, "t2", p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other tenant must not see plan, got %v", err)
	}

	got.Status = model.PlanSucceeded
	got.Vehicles = 1
	got.TotalDistance = 10
	got.Routes = []opt.Route{{Stops: []int{0, 1, 0}, Distance: 10, Demand: 10}}
	upd, err := s.UpdatePlan(ctx, got)
	if err != nil {
		t.Fatalf("UpdatePlan: %v", err)
	}
	if upd.Status != model.PlanSucceeded || len(upd.Routes) != 1 || upd.Routes[0].Stops[1] != 1 {
		t.Fatalf("update not applied: %+v", upd)
	}
	if !upd.CreatedAt.Equal(p.CreatedAt) {
		t.Fatalf("created timestamp changed: %v -> %v", p.CreatedAt, upd.CreatedAt)
	}

	ghost := samplePlan("t1")
	ghost.ID = "missing"
	if _, err := s.UpdatePlan(ctx, ghost); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update of unknown plan: got %v", err)
	}

	m := opt.Metrics{Restarts: 2, Attempts: 7, BestCost: 10, PerRestart: []opt.RestartSummary{{Restart: 0, Found: true, Cost: 10}}}
	if err := s.SavePlanMetrics(ctx, "t1", p.ID, m); err != nil {
		t.Fatalf("SavePlanMetrics: %v", err)
	}
	m.Attempts = 9
	if err := s.SavePlanMetrics(ctx, "t1", p.ID, m); err != nil {
		t.Fatalf("SavePlanMetrics overwrite: %v", err)
	}
	gm, err := s.GetPlanMetrics(ctx, "t1", p.ID)
	if err != nil {
		t.Fatalf("GetPlanMetrics: %v", err)
	}
	if gm.Attempts != 9 || len(gm.PerRestart) != 1 || !gm.PerRestart[0].Found {
		t.Fatalf("unexpected metrics: %+v", gm)
	}
	if _, err := s.GetPlanMetrics(ctx, "t2", p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("metrics of other tenant: got %v", err)
	}
}

func exercisePaging(t *testing.T, s Store) {
	ctx := context.Background()
	var ids []string
	for i := 0; i < 5; i++ {
		p, err := s.CreatePlan(ctx, samplePlan("paged"))
		if err != nil {
			t.Fatalf("CreatePlan: %v", err)
		}
		ids = append(ids, p.ID)
	}
	var seen []string
	cursor := ""
	for page := 0; page < 5; page++ {
		items, next, err := s.ListPlans(ctx, "paged", cursor, 2)
		if err != nil {
			t.Fatalf("ListPlans: %v", err)
		}
		for _, p := range items {
			seen = append(seen, p.ID)
		}
		if next == "" {
			break
		}
		cursor = next
	}
	if len(seen) != len(ids) {
		t.Fatalf("paged %d plans, want %d", len(seen), len(ids))
	}
	for i := range ids {
		if seen[i] != ids[i] {
			t.Fatalf("plan %d: got %s want %s", i, seen[i], ids[i])
		}
	}
	items, _, err := s.ListPlans(ctx, "nobody", "", 10)
	if err != nil || len(items) != 0 {
		t.Fatalf("empty tenant: %v %v", items, err)
	}

	// A cursor that names no plan still pages from its position.
	items, _, err = s.ListPlans(ctx, "paged", ids[2]+"x", 10)
	if err != nil {
		t.Fatalf("ListPlans unknown cursor: %v", err)
	}
	if len(items) != 2 || items[0].ID != ids[3] || items[1].ID != ids[4] {
		t.Fatalf("unknown cursor: got %v, want %v", planIDs(items), ids[3:])
	}
	items, next, err := s.ListPlans(ctx, "paged", "ffffffff", 10)
	if err != nil || len(items) != 0 || next != "" {
		t.Fatalf("cursor past the end: %v %q %v", planIDs(items), next, err)
	}
}

func planIDs(plans []model.Plan) []string {
	out := make([]string, 0, len(plans))
	for _, p := range plans {
		out = append(out, p.ID)
	}
	return out
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
	exercisePaging(t, NewMemory())
}

func TestSQLiteStore(t *testing.T) {
	exerciseStore(t, newSQLite(t))
	exercisePaging(t, newSQLite(t))
}

func TestSQLiteMigrateIsIdempotent(t *testing.T) {
	s := newSQLite(t)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	p, _ := s.CreatePlan(ctx, samplePlan("t1"))
	got, _ := s.GetPlan(ctx, "t1", p.ID)
	got.Points[1].Demand = 999
	again, _ := s.GetPlan(ctx, "t1", p.ID)
	if again.Points[1].Demand != 10 {
		t.Fatalf("stored plan was mutated through a returned copy")
	}
}

func TestPlaceholderRewrite(t *testing.T) {
	s := &sqlStore{d: dialect{numbered: true}, now: time.Now}
	if got := s.q(`SELECT a FROM t WHERE x=? AND y=?`); got != `SELECT a FROM t WHERE x=$1 AND y=$2` {
		t.Fatalf("rewrite: %s", got)
	}
	s.d.numbered = false
	if got := s.q(`x=?`); got != `x=?` {
		t.Fatalf("sqlite keeps ?: %s", got)
	}
}

func TestClampLimit(t *testing.T) {
	for in, want := range map[int]int{0: 100, -3: 100, 7: 7, 10000: 500} {
		if got := clampLimit(in); got != want {
			t.Fatalf("clampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
