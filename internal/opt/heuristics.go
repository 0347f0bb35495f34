package opt

import (
	"context"
	"math"
	"sort"
)

// savingsNeighbors bounds the merge candidates of each customer in savings.
// Instances with fewer customers consider every pair.
const savingsNeighbors = 100

// construct builds a first solution for m with the given strategy. It returns
// ErrNoAssignment when the customers do not fit into m.Vehicles routes and
// ctx.Err() when ctx ends before any construction finished. Automatic mode
// keeps the cheapest construction completed before ctx ended.
func construct(ctx context.Context, m *Model, s Strategy) ([][]int, error) {
	switch s {
	case StrategyPathCheapestArc:
		return pathCheapestArc(ctx, m)
	case StrategyPathMostConstrainedArc:
		return pathMostConstrainedArc(ctx, m)
	case StrategySavings:
		return savings(ctx, m)
	}
	var best [][]int
	bestCost := math.Inf(1)
	for _, build := range []func(context.Context, *Model) ([][]int, error){savings, pathCheapestArc, pathMostConstrainedArc} {
		routes, err := build(ctx, m)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if c := m.cost(routes); c < bestCost {
			best, bestCost = routes, c
		}
	}
	if best != nil {
		return best, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, ErrNoAssignment
}

// pathCheapestArc extends each vehicle path with the nearest customer that still fits.
func pathCheapestArc(ctx context.Context, m *Model) ([][]int, error) {
	return extendPaths(ctx, m, func(last, a, b int) bool {
		return m.Matrix[last][a] < m.Matrix[last][b]
	})
}

// pathMostConstrainedArc extends each path with the largest-demand customer that
// still fits, nearest first among equal demands.
func pathMostConstrainedArc(ctx context.Context, m *Model) ([][]int, error) {
	return extendPaths(ctx, m, func(last, a, b int) bool {
		if m.Demands[a] != m.Demands[b] {
			return m.Demands[a] > m.Demands[b]
		}
		return m.Matrix[last][a] < m.Matrix[last][b]
	})
}

func extendPaths(ctx context.Context, m *Model, better func(last, a, b int) bool) ([][]int, error) {
	n := m.Nodes()
	used := make([]bool, n)
	left := n - 1
	routes := make([][]int, m.Vehicles)
	for v := 0; v < m.Vehicles && left > 0; v++ {
		last, load := 0, 0
		for {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			next := -1
			for i := 1; i < n; i++ {
				if used[i] || load+m.Demands[i] > m.Capacity {
					continue
				}
				if next == -1 || better(last, i, next) {
					next = i
				}
			}
			if next == -1 {
				break
			}
			routes[v] = append(routes[v], next)
			used[next] = true
			load += m.Demands[next]
			last = next
			left--
		}
	}
	if left > 0 {
		return nil, ErrNoAssignment
	}
	return routes, nil
}

type saving struct {
	i, j  int
	value float64
}

// savings is the parallel Clarke-Wright construction. Routes are merged end to
// end while capacity allows; the result is infeasible if more routes than
// vehicles remain. Each customer is paired with its savingsNeighbors nearest
// customers only.
func savings(ctx context.Context, m *Model) ([][]int, error) {
	n := m.Nodes()
	routes := make([][]int, n)
	loads := make([]int, n)
	routeOf := make([]int, n)
	for i := 1; i < n; i++ {
		if m.Demands[i] > m.Capacity {
			return nil, ErrNoAssignment
		}
		routes[i] = []int{i}
		loads[i] = m.Demands[i]
		routeOf[i] = i
	}
	near, err := m.candidates(ctx, savingsNeighbors)
	if err != nil {
		return nil, err
	}
	var list []saving
	for i := 1; i < n; i++ {
		for _, j := range near[i] {
			a, b := min(i, j), max(i, j)
			v := (m.Matrix[a][0]+m.Matrix[0][a]+m.Matrix[b][0]+m.Matrix[0][b])/2 - (m.Matrix[a][b]+m.Matrix[b][a])/2
			if v > 0 {
				list = append(list, saving{i: a, j: b, value: v})
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.Slice(list, func(x, y int) bool {
		if list[x].value != list[y].value {
			return list[x].value > list[y].value
		}
		if list[x].i != list[y].i {
			return list[x].i < list[y].i
		}
		return list[x].j < list[y].j
	})
	for k, s := range list {
		if k > 0 && s.i == list[k-1].i && s.j == list[k-1].j {
			continue
		}
		if k%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		ri, rj := routeOf[s.i], routeOf[s.j]
		if ri == rj || loads[ri]+loads[rj] > m.Capacity {
			continue
		}
		a, b := routes[ri], routes[rj]
		if !isEnd(a, s.i) || !isEnd(b, s.j) {
			continue
		}
		if a[len(a)-1] != s.i {
			reverse(a)
		}
		if b[0] != s.j {
			reverse(b)
		}
		routes[ri] = append(a, b...)
		loads[ri] += loads[rj]
		for _, node := range b {
			routeOf[node] = ri
		}
		routes[rj] = nil
		loads[rj] = 0
	}
	out := make([][]int, 0, m.Vehicles)
	for i := 1; i < n; i++ {
		if len(routes[i]) > 0 {
			out = append(out, routes[i])
		}
	}
	if len(out) > m.Vehicles {
		return nil, ErrNoAssignment
	}
	for len(out) < m.Vehicles {
		out = append(out, nil)
	}
	return out, nil
}

func isEnd(route []int, node int) bool {
	return len(route) > 0 && (route[0] == node || route[len(route)-1] == node)
}

func reverse(s []int) {
	for a, b := 0, len(s)-1; a < b; a, b = a+1, b-1 {
		s[a], s[b] = s[b], s[a]
	}
}

func cloneRoutes(routes [][]int) [][]int {
	out := make([][]int, len(routes))
	for i, r := range routes {
		out[i] = append([]int(nil), r...)
	}
	return out
}
