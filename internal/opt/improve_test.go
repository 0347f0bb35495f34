package opt

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedEngine returns one assignment per scripted cost, then ErrNoAssignment.
type scriptedEngine struct {
	costs []float64
	calls int
}

func (e *scriptedEngine) Solve(ctx context.Context, req SolveRequest) (*Assignment, error) {
	defer func() { e.calls++ }()
	if e.calls >= len(e.costs) {
		return nil, ErrNoAssignment
	}
	return &Assignment{Routes: [][]int{{1}}, Cost: e.costs[e.calls]}, nil
}

type recorder struct {
	mu       sync.Mutex
	attempts []AttemptEvent
	restarts []RestartEvent
}

func (r *recorder) AttemptFinished(e AttemptEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, e)
}

func (r *recorder) RestartFinished(e RestartEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.restarts = append(r.restarts, e)
}

func oneCustomerModel(demand, capacity int) *Model {
	return &Model{
		Matrix:   DistanceMatrix{{0, 1}, {1, 0}},
		Demands:  []int{0, demand},
		Vehicles: 1,
		Capacity: capacity,
	}
}

func engineCost(a *Assignment) float64 { return a.Cost }

func newLoop(e Engine, limit int, threshold float64) *Loop {
	return &Loop{
		Engine:         e,
		StepTimeLimit:  time.Second,
		MaxTime:        time.Hour,
		NoImproveLimit: limit,
		MinImprovement: threshold,
	}
}

func TestLoopAllAttemptsFail(t *testing.T) {
	rec := &recorder{}
	loop := newLoop(EngineFunc(func(context.Context, SolveRequest) (*Assignment, error) {
		return nil, ErrNoAssignment
	}), 4, 1)
	loop.Observer = rec

	res := loop.Run(context.Background(), 0, oneCustomerModel(1, 10), engineCost, rand.New(rand.NewSource(1)))
	assert.Nil(t, res.Best)
	assert.True(t, math.IsInf(res.Cost, 1))
	assert.Equal(t, 4, res.Attempts)
	assert.Equal(t, 4, res.Failed)
	assert.Zero(t, res.Improvements)
	require.Len(t, rec.attempts, 4)
	for _, e := range rec.attempts {
		assert.False(t, e.OK)
		assert.ErrorIs(t, e.Err, ErrSolveAttemptFailed)
	}
}

func TestLoopThresholdStopsOnSmallGains(t *testing.T) {
	eng := &scriptedEngine{costs: []float64{100, 99.5, 90, 95, 89.5, 89.2}}
	rec := &recorder{}
	loop := newLoop(eng, 3, 1)
	loop.Observer = rec

	res := loop.Run(context.Background(), 0, oneCustomerModel(1, 10), engineCost, rand.New(rand.NewSource(1)))
	assert.Equal(t, 6, res.Attempts)
	assert.Equal(t, 2, res.Improvements)
	assert.Equal(t, 90.0, res.Cost)
	assert.Equal(t, 90.0, res.Best.Cost)

	var improved []bool
	for _, e := range rec.attempts {
		improved = append(improved, e.Improved)
	}
	assert.Equal(t, []bool{true, false, true, false, false, false}, improved)
}

func TestLoopZeroThresholdTakesEveryGain(t *testing.T) {
	eng := &scriptedEngine{costs: []float64{100, 99.5, 90, 95, 89.5, 89.2}}
	res := newLoop(eng, 3, 0).Run(context.Background(), 0, oneCustomerModel(1, 10), engineCost, rand.New(rand.NewSource(1)))
	assert.Equal(t, 9, res.Attempts)
	assert.Equal(t, 3, res.Failed)
	assert.Equal(t, 5, res.Improvements)
	assert.Equal(t, 89.2, res.Cost)
}

func TestLoopMaxTimeCeiling(t *testing.T) {
	clock := time.Unix(0, 0)
	cost := 1000.0
	loop := newLoop(EngineFunc(func(context.Context, SolveRequest) (*Assignment, error) {
		cost -= 10
		return &Assignment{Routes: [][]int{{1}}, Cost: cost}, nil
	}), 100, 1)
	loop.MaxTime = 35 * time.Second
	loop.Now = func() time.Time {
		clock = clock.Add(10 * time.Second)
		return clock
	}

	res := loop.Run(context.Background(), 0, oneCustomerModel(1, 10), engineCost, rand.New(rand.NewSource(1)))
	assert.Equal(t, 4, res.Attempts)
	assert.Equal(t, 40*time.Second, res.Elapsed)
	assert.Equal(t, 960.0, res.Cost)
}

func TestLoopRejectsOverCapacityAssignment(t *testing.T) {
	loop := newLoop(EngineFunc(func(context.Context, SolveRequest) (*Assignment, error) {
		return &Assignment{Routes: [][]int{{1}}, Cost: 1}, nil
	}), 3, 1)
	res := loop.Run(context.Background(), 0, oneCustomerModel(50, 10), engineCost, rand.New(rand.NewSource(1)))
	assert.Nil(t, res.Best)
	assert.Equal(t, 3, res.Failed)
}

func TestLoopCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	eng := &scriptedEngine{costs: []float64{1}}
	res := newLoop(eng, 3, 1).Run(ctx, 0, oneCustomerModel(1, 10), engineCost, rand.New(rand.NewSource(1)))
	assert.Zero(t, res.Attempts)
	assert.Zero(t, eng.calls)
}

func TestLoopDrawsFromConfiguredStrategies(t *testing.T) {
	var got []Strategy
	loop := newLoop(EngineFunc(func(_ context.Context, req SolveRequest) (*Assignment, error) {
		got = append(got, req.Strategy)
		return nil, ErrNoAssignment
	}), 20, 1)
	loop.Strategies = []Strategy{StrategySavings, StrategyPathCheapestArc}
	loop.Run(context.Background(), 0, oneCustomerModel(1, 10), engineCost, rand.New(rand.NewSource(9)))
	require.Len(t, got, 20)
	for _, s := range got {
		assert.Contains(t, []Strategy{StrategySavings, StrategyPathCheapestArc}, s)
	}
}

func TestImproves(t *testing.T) {
	assert.True(t, improves(500, math.Inf(1), 1))
	assert.False(t, improves(math.Inf(1), math.Inf(1), 0))
	assert.True(t, improves(98.9, 100, 1))
	assert.False(t, improves(99, 100, 1))
	assert.True(t, improves(99.99, 100, 0))
	assert.False(t, improves(100, 100, 0))
}
