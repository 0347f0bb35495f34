package opt

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Strategy selects the first-solution construction heuristic.
type Strategy int

const (
	StrategyAutomatic Strategy = iota
	StrategyPathCheapestArc
	StrategyPathMostConstrainedArc
	StrategySavings
)

// DefaultStrategies is the candidate set drawn from at every improvement step.
var DefaultStrategies = []Strategy{
	StrategySavings,
	StrategyPathCheapestArc,
	StrategyPathMostConstrainedArc,
	StrategyAutomatic,
}

func (s Strategy) String() string {
	switch s {
	case StrategyPathCheapestArc:
		return "path_cheapest_arc"
	case StrategyPathMostConstrainedArc:
		return "path_most_constrained_arc"
	case StrategySavings:
		return "savings"
	default:
		return "automatic"
	}
}

// ParseStrategy accepts the names produced by Strategy.String, case-insensitively.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "automatic", "auto":
		return StrategyAutomatic, nil
	case "path_cheapest_arc":
		return StrategyPathCheapestArc, nil
	case "path_most_constrained_arc":
		return StrategyPathMostConstrainedArc, nil
	case "savings":
		return StrategySavings, nil
	}
	return 0, fmt.Errorf("opt: unknown strategy %q", name)
}

var (
	// ErrNoAssignment is returned by an Engine that found no feasible assignment in time.
	ErrNoAssignment = errors.New("opt: no feasible assignment")
	// ErrInfeasibleAssignment marks an assignment that breaks coverage or capacity.
	ErrInfeasibleAssignment = errors.New("opt: infeasible assignment")
)

// Model is what an Engine solves: a relabeled instance with its arc costs.
type Model struct {
	Matrix   DistanceMatrix
	Demands  []int
	Vehicles int
	Capacity int

	mu      sync.Mutex
	nearest map[int][][]int
}

// Nodes counts the depot and all customers.
func (m *Model) Nodes() int { return len(m.Demands) }

// SolveRequest is one bounded solve attempt.
type SolveRequest struct {
	Model     *Model
	Strategy  Strategy
	TimeLimit time.Duration
	Seed      int64
}

// Assignment is an engine solution in model labels: one customer sequence per
// vehicle slot, depot excluded at both ends. Cost is measured on Model.Matrix.
type Assignment struct {
	Routes [][]int
	Cost   float64
}

// Engine finds feasible routings for a model within a time limit. It returns
// ErrNoAssignment when none was found; callers resubmit the model to keep searching.
type Engine interface {
	Solve(ctx context.Context, req SolveRequest) (*Assignment, error)
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, req SolveRequest) (*Assignment, error)

func (f EngineFunc) Solve(ctx context.Context, req SolveRequest) (*Assignment, error) {
	return f(ctx, req)
}

func (m *Model) routeCost(route []int) float64 {
	if len(route) == 0 {
		return 0
	}
	total := m.Matrix[0][route[0]]
	for i := 0; i < len(route)-1; i++ {
		total += m.Matrix[route[i]][route[i+1]]
	}
	return total + m.Matrix[route[len(route)-1]][0]
}

func (m *Model) cost(routes [][]int) float64 {
	total := 0.0
	for _, r := range routes {
		total += m.routeCost(r)
	}
	return total
}

func (m *Model) load(route []int) int {
	total := 0
	for _, n := range route {
		total += m.Demands[n]
	}
	return total
}

// candidates returns, for every customer u, the k other customers with the
// cheapest arc from u, nearest first and lower index first on ties. Lists are
// cached per k for the lifetime of m, so resubmitting the model does not
// rebuild them. Nothing is cached when ctx ends during the build.
func (m *Model) candidates(ctx context.Context, k int) ([][]int, error) {
	n := m.Nodes()
	k = max(0, min(k, n-2))
	m.mu.Lock()
	defer m.mu.Unlock()
	if lists, ok := m.nearest[k]; ok {
		return lists, nil
	}
	lists := make([][]int, n)
	for u := 1; u < n; u++ {
		if u%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row := m.Matrix[u]
		top := make([]int, 0, k)
		for w := 1; w < n && k > 0; w++ {
			if w == u || (len(top) == k && row[w] >= row[top[k-1]]) {
				continue
			}
			p := sort.Search(len(top), func(i int) bool { return row[w] < row[top[i]] })
			if len(top) < k {
				top = append(top, 0)
			}
			copy(top[p+1:], top[p:len(top)-1])
			top[p] = w
		}
		lists[u] = top
	}
	if m.nearest == nil {
		m.nearest = make(map[int][][]int)
	}
	m.nearest[k] = lists
	return lists, nil
}

// Check verifies that a visits every customer exactly once, uses at most
// Vehicles routes and respects Capacity on each of them.
func (m *Model) Check(a *Assignment) error {
	if a == nil {
		return fmt.Errorf("%w: nil", ErrInfeasibleAssignment)
	}
	if len(a.Routes) > m.Vehicles {
		return fmt.Errorf("%w: %d routes for %d vehicles", ErrInfeasibleAssignment, len(a.Routes), m.Vehicles)
	}
	seen := make([]bool, m.Nodes())
	visited := 0
	for v, r := range a.Routes {
		load := 0
		for _, n := range r {
			if n <= 0 || n >= m.Nodes() {
				return fmt.Errorf("%w: vehicle %d visits unknown node %d", ErrInfeasibleAssignment, v, n)
			}
			if seen[n] {
				return fmt.Errorf("%w: node %d visited twice", ErrInfeasibleAssignment, n)
			}
			seen[n] = true
			visited++
			load += m.Demands[n]
		}
		if load > m.Capacity {
			return fmt.Errorf("%w: vehicle %d carries %d over capacity %d", ErrInfeasibleAssignment, v, load, m.Capacity)
		}
	}
	if visited != m.Nodes()-1 {
		return fmt.Errorf("%w: %d of %d customers visited", ErrInfeasibleAssignment, visited, m.Nodes()-1)
	}
	return nil
}
