package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cvrpplan/internal/metrics"
	"cvrpplan/internal/model"
	"cvrpplan/internal/opt"
	"cvrpplan/internal/store"
)

const maxRequestBytes = 8 << 20

// OptimizeHandler handles POST /v1/optimize
func (s *Server) OptimizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	if !p.CanPlan() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher or admin required", r.URL.Path)
		return
	}
	if s.Limiter != nil && !s.Limiter.Allow() {
		w.Header().Set("Retry-After", "1")
		writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "optimize rate limit exceeded", r.URL.Path)
		return
	}
	var req model.OptimizeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateOptimizeRequest(&req, s.Config.Service.MaxPoints); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid optimize request", err.Error(), r.URL.Path)
		return
	}
	opts, err := s.planOptions(req.Options)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid planner options", err.Error(), r.URL.Path)
		return
	}
	inst, err := opt.NewInstance(req.OptPoints(), req.Capacity)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid instance", err.Error(), r.URL.Path)
		return
	}

	tenant := p.Tenant
	if req.TenantID != "" && p.IsAdmin() {
		tenant = req.TenantID
	}
	plan, err := s.Store.CreatePlan(r.Context(), model.Plan{
		TenantID: tenant,
		Name:     req.Name,
		Status:   model.PlanQueued,
		Capacity: inst.Capacity,
		Vehicles: inst.Vehicles + opts.ExtraVehicles,
		Points:   inst.Points,
		Routes:   []opt.Route{},
	})
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Create plan failed", err.Error(), r.URL.Path)
		return
	}
	loc := "/v1/plans/" + plan.ID

	if req.Async {
		s.runs.Add(1)
		go func() {
			defer s.runs.Done()
			s.execute(s.ctx, plan, inst, opts)
		}()
		w.Header().Set("Location", loc)
		writeJSON(w, http.StatusAccepted, plan)
		return
	}

	plan = s.execute(r.Context(), plan, inst, opts)
	w.Header().Set("Location", loc)
	if plan.Status != model.PlanSucceeded {
		writeProblem(w, http.StatusUnprocessableEntity, "Planning failed", plan.Error, loc)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// PlansHandler handles GET /v1/plans
func (s *Server) PlansHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	cursor := r.URL.Query().Get("cursor")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be a non-negative integer", r.URL.Path)
			return
		}
		limit = n
	}
	items, next, err := s.Store.ListPlans(r.Context(), p.Tenant, cursor, limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List plans failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// PlanByIDHandler handles /v1/plans/{id} and /v1/plans/{id}/events/ws
func (s *Server) PlanByIDHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	rest := strings.TrimPrefix(path, "/v1/plans/")
	if rest == path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	switch {
	case len(parts) == 1:
		plan, err := s.Store.GetPlan(r.Context(), p.Tenant, id)
		if err != nil {
			s.planLookupProblem(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, plan)
	case len(parts) == 3 && parts[1] == "events" && parts[2] == "ws":
		s.planEventsWS(w, r, p, id)
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", path)
	}
}

func (s *Server) planLookupProblem(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Plan not found", "", r.URL.Path)
		return
	}
	writeProblem(w, http.StatusInternalServerError, "Get plan failed", err.Error(), r.URL.Path)
}

// OptimizerConfigHandler handles GET /v1/optimizer/config and reports the
// planner defaults applied to requests without overrides.
func (s *Server) OptimizerConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	o := s.Options
	strategies := make([]string, len(o.Strategies))
	for i, st := range o.Strategies {
		strategies[i] = st.String()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"restarts":                o.Restarts,
		"stepTimeLimitMs":         o.StepTimeLimit.Milliseconds(),
		"maxTimeMs":               o.MaxTime.Milliseconds(),
		"noImproveLimit":          o.NoImproveLimit,
		"minImprovement":          o.MinImprovement,
		"applyThresholdAtRestart": o.ApplyThresholdAtRestart,
		"noiseSigma":              o.NoiseSigma,
		"strategies":              strategies,
		"workers":                 o.Workers,
		"extraVehicles":           o.ExtraVehicles,
		"maxPoints":               s.Config.Service.MaxPoints,
	})
}

// PlanMetricsHandler handles GET /v1/admin/plan-metrics?planId=
func (s *Server) PlanMetricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/admin/plan-metrics" || r.Method != http.MethodGet {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	planID := r.URL.Query().Get("planId")
	if planID == "" {
		writeProblem(w, http.StatusBadRequest, "Missing planId", "", r.URL.Path)
		return
	}
	// Prefer stored metrics; fall back to the in-process copy.
	m, err := s.Store.GetPlanMetrics(r.Context(), p.Tenant, planID)
	if err != nil {
		mm, ok := opt.GetMetrics(p.Tenant, planID)
		if !ok {
			if errors.Is(err, store.ErrNotFound) {
				writeProblem(w, http.StatusNotFound, "Metrics not found", "", r.URL.Path)
			} else {
				writeProblem(w, http.StatusInternalServerError, "Metrics failed", err.Error(), r.URL.Path)
			}
			return
		}
		m = mm
	}
	writeJSON(w, http.StatusOK, map[string]any{"planId": planID, "metrics": m})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	// Check DB connectivity when the store has one
	type pinger interface {
		Ping(ctx context.Context) error
	}
	if pg, ok := s.Store.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := pg.Ping(ctx); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// MetricsHandler serves the dedicated Prometheus registry.
func (s *Server) MetricsHandler() http.Handler {
	metrics.RegisterDefault()
	return promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})
}
