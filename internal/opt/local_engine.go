package opt

import (
	"context"
	"math"
	"math/rand"
)

const eps = 1e-9

// LocalEngine is the in-process Engine: a construction heuristic followed by
// guided local search over relocate, swap and 2-opt moves.
type LocalEngine struct {
	// Lambda scales arc penalties against the mean arc cost of the first solution.
	Lambda float64
	// StallRounds ends the search after that many penalty rounds without a new best.
	StallRounds int
	// Neighbors bounds the candidate list of each customer.
	Neighbors int
}

func NewLocalEngine() *LocalEngine {
	return &LocalEngine{Lambda: 0.1, StallRounds: 100, Neighbors: 20}
}

// Solve runs until the time limit expires, ctx is done, or the search stalls.
// The best assignment found is returned even when the deadline cut it short.
// When the deadline expires before any construction finished the result is
// ErrNoAssignment; when ctx itself ends first it is ctx.Err().
func (e *LocalEngine) Solve(ctx context.Context, req SolveRequest) (*Assignment, error) {
	m := req.Model
	if m == nil || m.Nodes() == 0 {
		return nil, ErrNoAssignment
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parent := ctx
	if req.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.TimeLimit)
		defer cancel()
	}
	routes, err := construct(ctx, m, req.Strategy)
	if err != nil {
		if perr := parent.Err(); perr != nil {
			return nil, perr
		}
		return nil, ErrNoAssignment
	}
	rng := rand.New(rand.NewSource(req.Seed))
	routes = e.guidedLocalSearch(ctx, m, routes, rng)
	return &Assignment{Routes: routes, Cost: m.cost(routes)}, nil
}

func (e *LocalEngine) guidedLocalSearch(ctx context.Context, m *Model, routes [][]int, rng *rand.Rand) [][]int {
	n := m.Nodes()
	if n <= 2 {
		return routes
	}
	lambda := e.Lambda
	if lambda <= 0 {
		lambda = 0.1
	}
	stallLimit := e.StallRounds
	if stallLimit <= 0 {
		stallLimit = 100
	}
	k := e.Neighbors
	if k <= 0 || k > n-2 {
		k = n - 2
	}

	g, err := newSearch(ctx, m, cloneRoutes(routes), k)
	if err != nil {
		return routes
	}
	best, bestCost := cloneRoutes(routes), m.cost(routes)
	arcs := n - 1
	for _, r := range routes {
		if len(r) > 0 {
			arcs++
		}
	}
	g.lambda = lambda * bestCost / float64(arcs)
	if g.lambda <= 0 {
		g.lambda = lambda
	}

	for stall := 0; stall < stallLimit && ctx.Err() == nil; {
		g.descend(ctx, rng)
		if c := m.cost(g.routes); c < bestCost-eps {
			best, bestCost = cloneRoutes(g.routes), c
			stall = 0
		} else {
			stall++
		}
		g.penalize()
	}
	return best
}

// search is the mutable state of one guided local search run. Moves are
// evaluated on the augmented cost: arc cost plus lambda times its penalty.
type search struct {
	m         *Model
	lambda    float64
	pen       []int32
	neighbors [][]int
	routes    [][]int
	loads     []int
	routeOf   []int
	posOf     []int
}

func newSearch(ctx context.Context, m *Model, routes [][]int, k int) (*search, error) {
	near, err := m.candidates(ctx, k)
	if err != nil {
		return nil, err
	}
	n := m.Nodes()
	s := &search{
		m:         m,
		pen:       make([]int32, n*n),
		neighbors: near,
		routes:    routes,
		loads:     make([]int, len(routes)),
		routeOf:   make([]int, n),
		posOf:     make([]int, n),
	}
	for r := range routes {
		s.reindex(r)
	}
	return s, nil
}

func (s *search) reindex(r int) {
	load := 0
	for p, n := range s.routes[r] {
		s.routeOf[n] = r
		s.posOf[n] = p
		load += s.m.Demands[n]
	}
	s.loads[r] = load
}

// node returns the customer at position p of route r, or the depot off either end.
func (s *search) node(r, p int) int {
	if p < 0 || p >= len(s.routes[r]) {
		return 0
	}
	return s.routes[r][p]
}

func (s *search) arcCost(a, b int) float64 {
	c := s.m.Matrix[a][b]
	if p := s.pen[a*len(s.routeOf)+b]; p > 0 {
		c += s.lambda * float64(p)
	}
	return c
}

func (s *search) routeAug(route []int) float64 {
	if len(route) == 0 {
		return 0
	}
	total := s.arcCost(0, route[0])
	for i := 0; i < len(route)-1; i++ {
		total += s.arcCost(route[i], route[i+1])
	}
	return total + s.arcCost(route[len(route)-1], 0)
}

func (s *search) descend(ctx context.Context, rng *rand.Rand) {
	n := s.m.Nodes()
	for improved := true; improved; {
		improved = false
		for _, u := range rng.Perm(n - 1) {
			if ctx.Err() != nil {
				return
			}
			u++
			if s.relocate(u) || s.swap(u) || s.twoOpt(u) {
				improved = true
			}
		}
	}
}

// relocate moves u next to one of its neighbors, or into an empty vehicle.
func (s *search) relocate(u int) bool {
	r, i := s.routeOf[u], s.posOf[u]
	p, q := s.node(r, i-1), s.node(r, i+1)
	gain := s.arcCost(p, u) + s.arcCost(u, q) - s.arcCost(p, q)
	du := s.m.Demands[u]

	bestDelta, bestR, bestPos := -eps, -1, -1
	try := func(r2, pos int) {
		x, y := s.node(r2, pos-1), s.node(r2, pos)
		delta := s.arcCost(x, u) + s.arcCost(u, y) - s.arcCost(x, y) - gain
		if delta < bestDelta {
			bestDelta, bestR, bestPos = delta, r2, pos
		}
	}
	for _, w := range s.neighbors[u] {
		r2 := s.routeOf[w]
		if r2 == r {
			if s.relocateWithin(u, w) {
				return true
			}
			continue
		}
		if s.loads[r2]+du > s.m.Capacity {
			continue
		}
		try(r2, s.posOf[w])
		try(r2, s.posOf[w]+1)
	}
	if len(s.routes[r]) > 1 {
		for r2, route := range s.routes {
			if len(route) == 0 {
				try(r2, 0)
				break
			}
		}
	}
	if bestR < 0 {
		return false
	}
	s.routes[r] = append(s.routes[r][:i], s.routes[r][i+1:]...)
	dst := s.routes[bestR]
	dst = append(dst, 0)
	copy(dst[bestPos+1:], dst[bestPos:])
	dst[bestPos] = u
	s.routes[bestR] = dst
	s.reindex(r)
	s.reindex(bestR)
	return true
}

// relocateWithin tries u directly before and after w inside their shared route.
func (s *search) relocateWithin(u, w int) bool {
	r := s.routeOf[u]
	route := s.routes[r]
	before := s.routeAug(route)
	without := make([]int, 0, len(route))
	for _, n := range route {
		if n != u {
			without = append(without, n)
		}
	}
	wp := 0
	for p, n := range without {
		if n == w {
			wp = p
		}
	}
	for _, pos := range []int{wp, wp + 1} {
		cand := make([]int, 0, len(route))
		cand = append(cand, without[:pos]...)
		cand = append(cand, u)
		cand = append(cand, without[pos:]...)
		if s.routeAug(cand) < before-eps {
			s.routes[r] = cand
			s.reindex(r)
			return true
		}
	}
	return false
}

// swap exchanges u with a neighbor served by another vehicle.
func (s *search) swap(u int) bool {
	r, i := s.routeOf[u], s.posOf[u]
	p, q := s.node(r, i-1), s.node(r, i+1)
	du := s.m.Demands[u]
	for _, w := range s.neighbors[u] {
		r2 := s.routeOf[w]
		if r2 == r {
			continue
		}
		dw := s.m.Demands[w]
		if s.loads[r]-du+dw > s.m.Capacity || s.loads[r2]-dw+du > s.m.Capacity {
			continue
		}
		j := s.posOf[w]
		p2, q2 := s.node(r2, j-1), s.node(r2, j+1)
		delta := s.arcCost(p, w) + s.arcCost(w, q) - s.arcCost(p, u) - s.arcCost(u, q) +
			s.arcCost(p2, u) + s.arcCost(u, q2) - s.arcCost(p2, w) - s.arcCost(w, q2)
		if delta < -eps {
			s.routes[r][i] = w
			s.routes[r2][j] = u
			s.reindex(r)
			s.reindex(r2)
			return true
		}
	}
	return false
}

// twoOpt reverses the segment after u so that u is followed by a neighbor.
func (s *search) twoOpt(u int) bool {
	r, i := s.routeOf[u], s.posOf[u]
	route := s.routes[r]
	for _, w := range s.neighbors[u] {
		if s.routeOf[w] != r {
			continue
		}
		k := s.posOf[w]
		if k <= i+1 {
			continue
		}
		if s.reversalDelta(r, i+1, k) < -eps {
			reverse(route[i+1 : k+1])
			s.reindex(r)
			return true
		}
	}
	return false
}

func (s *search) reversalDelta(r, a, b int) float64 {
	route := s.routes[r]
	before, after := s.node(r, a-1), s.node(r, b+1)
	old := s.arcCost(before, route[a]) + s.arcCost(route[b], after)
	next := s.arcCost(before, route[b]) + s.arcCost(route[a], after)
	for t := a; t < b; t++ {
		old += s.arcCost(route[t], route[t+1])
		next += s.arcCost(route[t+1], route[t])
	}
	return next - old
}

// penalize raises the penalty of the arcs with the highest utility
// cost/(1+penalty) in the current solution.
func (s *search) penalize() {
	n := len(s.routeOf)
	maxUtil := -1.0
	var hits []int
	visit := func(a, b int) {
		idx := a*n + b
		util := s.m.Matrix[a][b] / float64(1+s.pen[idx])
		switch {
		case util > maxUtil+eps:
			maxUtil = util
			hits = append(hits[:0], idx)
		case math.Abs(util-maxUtil) <= eps:
			hits = append(hits, idx)
		}
	}
	for _, route := range s.routes {
		if len(route) == 0 {
			continue
		}
		prev := 0
		for _, node := range route {
			visit(prev, node)
			prev = node
		}
		visit(prev, 0)
	}
	for _, idx := range hits {
		s.pen[idx]++
	}
}
