package opt

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// ErrSolveAttemptFailed marks a solve attempt that produced no usable assignment.
// The improvement loop counts it toward the no-improvement streak and moves on.
var ErrSolveAttemptFailed = errors.New("opt: solve attempt failed")

// Loop repeatedly solves one model with a fixed per-step budget and keeps the
// cheapest assignment by unperturbed cost.
type Loop struct {
	Engine         Engine
	Strategies     []Strategy
	StepTimeLimit  time.Duration
	MaxTime        time.Duration
	NoImproveLimit int
	// MinImprovement is the margin a new cost must beat the best by.
	MinImprovement float64
	Observer       Observer
	Now            func() time.Time
}

// LoopResult is the outcome of one improvement loop. Best is nil and Cost is
// +Inf when no attempt succeeded.
type LoopResult struct {
	Best         *Assignment
	Cost         float64
	Attempts     int
	Failed       int
	Improvements int
	Elapsed      time.Duration
}

// Run solves model until the cumulative solve time reaches MaxTime, the
// no-improvement streak reaches NoImproveLimit, or ctx is done. cost maps an
// assignment to its unperturbed cost.
func (l *Loop) Run(ctx context.Context, restart int, model *Model, cost func(*Assignment) float64, rng *rand.Rand) LoopResult {
	now := l.Now
	if now == nil {
		now = time.Now
	}
	strategies := l.Strategies
	if len(strategies) == 0 {
		strategies = DefaultStrategies
	}
	res := LoopResult{Cost: math.Inf(1)}
	noImprove := 0
	for step := 0; res.Elapsed < l.MaxTime && noImprove < l.NoImproveLimit; step++ {
		if ctx.Err() != nil {
			break
		}
		strategy := strategies[rng.Intn(len(strategies))]
		req := SolveRequest{Model: model, Strategy: strategy, TimeLimit: l.StepTimeLimit, Seed: rng.Int63()}
		start := now()
		a, err := l.Engine.Solve(ctx, req)
		dur := now().Sub(start)
		res.Elapsed += dur
		if err != nil && ctx.Err() != nil {
			break
		}
		res.Attempts++
		if err == nil {
			err = model.Check(a)
		}
		evt := AttemptEvent{Restart: restart, Step: step, Strategy: strategy, Duration: dur}
		if err != nil {
			res.Failed++
			noImprove++
			evt.Err = fmt.Errorf("%w: %v", ErrSolveAttemptFailed, err)
			l.notify(evt)
			continue
		}
		c := cost(a)
		evt.OK, evt.Cost = true, c
		if improves(c, res.Cost, l.MinImprovement) {
			res.Best, res.Cost = a, c
			res.Improvements++
			noImprove = 0
			evt.Improved = true
		} else {
			noImprove++
		}
		l.notify(evt)
	}
	return res
}

func (l *Loop) notify(e AttemptEvent) {
	if l.Observer != nil {
		l.Observer.AttemptFinished(e)
	}
}

// improves reports whether cost beats best by more than threshold. Anything
// finite beats an empty best.
func improves(cost, best, threshold float64) bool {
	if math.IsInf(best, 1) {
		return !math.IsInf(cost, 1)
	}
	return cost < best-threshold
}
