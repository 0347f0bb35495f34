package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"cvrpplan/internal/opt"
)

func TestPlannerObserver(t *testing.T) {
	RegisterDefault()
	RegisterDefault()

	before := testutil.ToFloat64(SolveAttempts.WithLabelValues("savings", "improved"))
	failed := testutil.ToFloat64(SolveAttempts.WithLabelValues("savings", "failed"))
	var o PlannerObserver
	o.AttemptFinished(opt.AttemptEvent{Strategy: opt.StrategySavings, OK: true, Improved: true, Duration: time.Second})
	o.AttemptFinished(opt.AttemptEvent{Strategy: opt.StrategySavings, Duration: time.Millisecond})

	if got := testutil.ToFloat64(SolveAttempts.WithLabelValues("savings", "improved")); got != before+1 {
		t.Fatalf("improved attempts: got %v want %v", got, before+1)
	}
	if got := testutil.ToFloat64(SolveAttempts.WithLabelValues("savings", "failed")); got != failed+1 {
		t.Fatalf("failed attempts: got %v want %v", got, failed+1)
	}

	none := testutil.ToFloat64(Restarts.WithLabelValues("none"))
	o.RestartFinished(opt.RestartEvent{})
	if got := testutil.ToFloat64(Restarts.WithLabelValues("none")); got != none+1 {
		t.Fatalf("restarts without solution: got %v want %v", got, none+1)
	}
}

func TestRegistryGathers(t *testing.T) {
	RegisterDefault()
	Plans.WithLabelValues("succeeded").Inc()
	mfs, err := Registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "cvrp_plans_total" {
			found = true
		}
	}
	if !found {
		t.Fatal("cvrp_plans_total not registered")
	}
}
