package opt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrNoFeasibleSolution is returned when every restart ended without a feasible assignment.
var ErrNoFeasibleSolution = errors.New("opt: no feasible solution found")

// Options tunes the multi-restart search.
type Options struct {
	Restarts       int
	StepTimeLimit  time.Duration
	MaxTime        time.Duration
	NoImproveLimit int
	MinImprovement float64
	// ApplyThresholdAtRestart also requires MinImprovement between restarts.
	ApplyThresholdAtRestart bool
	NoiseSigma              float64
	Strategies              []Strategy
	// Workers > 1 runs restarts in parallel.
	Workers int
	// Seed makes a run reproducible; zero seeds from the clock.
	Seed int64
	// ExtraVehicles is added to the derived vehicle count.
	ExtraVehicles int
}

func DefaultOptions() Options {
	return Options{
		Restarts:       10,
		StepTimeLimit:  300 * time.Second,
		MaxTime:        3600 * time.Second,
		NoImproveLimit: 10,
		MinImprovement: 1.0,
		NoiseSigma:     DefaultNoiseSigma,
		Strategies:     append([]Strategy(nil), DefaultStrategies...),
		Workers:        1,
	}
}

func (o Options) Validate() error {
	switch {
	case o.Restarts < 1:
		return fmt.Errorf("opt: restarts must be >= 1, got %d", o.Restarts)
	case o.StepTimeLimit <= 0:
		return fmt.Errorf("opt: step time limit must be > 0")
	case o.MaxTime <= 0:
		return fmt.Errorf("opt: max time must be > 0")
	case o.NoImproveLimit < 1:
		return fmt.Errorf("opt: no-improve limit must be >= 1, got %d", o.NoImproveLimit)
	case o.MinImprovement < 0:
		return fmt.Errorf("opt: min improvement must be >= 0")
	case o.NoiseSigma < 0 || math.IsNaN(o.NoiseSigma) || math.IsInf(o.NoiseSigma, 0):
		return fmt.Errorf("opt: noise sigma must be a finite value >= 0")
	case len(o.Strategies) == 0:
		return fmt.Errorf("opt: at least one strategy is required")
	case o.Workers < 0:
		return fmt.Errorf("opt: workers must be >= 0")
	case o.ExtraVehicles < 0:
		return fmt.Errorf("opt: extra vehicles must be >= 0")
	}
	return nil
}

// Planner runs the restart controller over an Engine.
type Planner struct {
	Engine   Engine
	Options  Options
	Observer Observer
	// Logger, when set, receives one line per restart.
	Logger *log.Logger
	Now    func() time.Time
}

func NewPlanner(engine Engine, opts Options) *Planner {
	return &Planner{Engine: engine, Options: opts, Now: time.Now}
}

// Result is the best plan found across all restarts.
type Result struct {
	Solution Solution
	// Cost is the unperturbed total distance.
	Cost     float64
	Relabel  Relabeling
	Restart  int
	Vehicles int
	Metrics  Metrics
}

// Plan searches inst with Options.Restarts independently perturbed restarts
// and returns the cheapest solution in original point indices. When ctx is
// cancelled the best solution so far is returned, or ctx.Err() if there is none.
func (p *Planner) Plan(ctx context.Context, inst *Instance) (*Result, error) {
	opts := p.Options
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	started := now()
	vehicles := inst.Vehicles + opts.ExtraVehicles
	if inst.Customers() == 0 {
		return &Result{Solution: Solution{Routes: []Route{}}, Relabel: Relabeling{0}, Vehicles: vehicles}, nil
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	base := rand.New(rand.NewSource(seed))
	seeds := make([]int64, opts.Restarts)
	for i := range seeds {
		seeds[i] = base.Int63()
	}

	threshold := 0.0
	if opts.ApplyThresholdAtRestart {
		threshold = opts.MinImprovement
	}
	best := &bestRecord{threshold: threshold}
	summaries := make([]RestartSummary, opts.Restarts)
	for i := range summaries {
		summaries[i].Restart = i
	}

	run := func(r int) {
		rng := rand.New(rand.NewSource(seeds[r]))
		pert := Perturb(inst, rng, opts.NoiseSigma)
		model := &Model{Matrix: pert.Matrix, Demands: pert.Demands, Vehicles: vehicles, Capacity: inst.Capacity}
		loop := &Loop{
			Engine:         p.Engine,
			Strategies:     opts.Strategies,
			StepTimeLimit:  opts.StepTimeLimit,
			MaxTime:        opts.MaxTime,
			NoImproveLimit: opts.NoImproveLimit,
			MinImprovement: opts.MinImprovement,
			Observer:       p.Observer,
			Now:            now,
		}
		lr := loop.Run(ctx, r, model, func(a *Assignment) float64 { return TrueCost(inst, pert.Relabel, a) }, rng)
		improved, global, hasBest := best.offer(r, lr.Best, lr.Cost, pert.Relabel)

		sum := RestartSummary{Restart: r, Found: lr.Best != nil, Attempts: lr.Attempts, Failed: lr.Failed,
			Improvements: lr.Improvements, ElapsedMs: lr.Elapsed.Milliseconds()}
		if sum.Found {
			sum.Cost = lr.Cost
		}
		summaries[r] = sum
		if p.Observer != nil {
			p.Observer.RestartFinished(RestartEvent{Restart: r, Found: sum.Found, Improved: improved, Cost: sum.Cost,
				Best: global, HasBest: hasBest, Attempts: lr.Attempts, Elapsed: lr.Elapsed})
		}
		if p.Logger != nil {
			if sum.Found {
				p.Logger.Printf("restart %d/%d: cost=%.1f best=%.1f attempts=%d elapsed=%s", r+1, opts.Restarts, lr.Cost, global, lr.Attempts, lr.Elapsed.Round(time.Millisecond))
			} else {
				p.Logger.Printf("restart %d/%d: no feasible assignment in %d attempts", r+1, opts.Restarts, lr.Attempts)
			}
		}
	}

	if opts.Workers <= 1 {
		for r := 0; r < opts.Restarts && ctx.Err() == nil; r++ {
			run(r)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(opts.Workers)
		for r := 0; r < opts.Restarts; r++ {
			g.Go(func() error {
				if ctx.Err() == nil {
					run(r)
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	m := Metrics{Restarts: opts.Restarts, Seed: seed, ElapsedMs: now().Sub(started).Milliseconds()}
	for _, s := range summaries {
		m.Attempts += s.Attempts
		m.FailedAttempts += s.Failed
		m.Improvements += s.Improvements
	}
	m.PerRestart = summaries

	a, cost, restart, relabel := best.get()
	if a == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w after %d restarts", ErrNoFeasibleSolution, opts.Restarts)
	}
	m.BestRestart, m.BestCost = restart, cost
	return &Result{
		Solution: ExtractRoutes(inst, relabel, a),
		Cost:     cost,
		Relabel:  relabel,
		Restart:  restart,
		Vehicles: vehicles,
		Metrics:  m,
	}, nil
}

// bestRecord is the global best shared by all restarts.
type bestRecord struct {
	mu         sync.Mutex
	threshold  float64
	assignment *Assignment
	cost       float64
	restart    int
	relabel    Relabeling
}

// offer replaces the record when a is strictly cheaper (beyond threshold), or
// equally cheap from an earlier restart so parallel runs stay deterministic.
func (b *bestRecord) offer(restart int, a *Assignment, cost float64, relabel Relabeling) (replaced bool, best float64, found bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if a == nil {
		return false, b.cost, b.assignment != nil
	}
	replace := b.assignment == nil ||
		cost < b.cost-b.threshold ||
		(cost == b.cost && restart < b.restart)
	if replace {
		b.assignment, b.cost, b.restart, b.relabel = a, cost, restart, relabel
	}
	return replace, b.cost, true
}

func (b *bestRecord) get() (*Assignment, float64, int, Relabeling) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.assignment, b.cost, b.restart, b.relabel
}
