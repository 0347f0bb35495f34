// Package opt plans capacitated vehicle routes with a multi-restart search over a
// pluggable solving engine.
package opt

import "math"

// Point is one stop of an instance. Index 0 of an instance is the depot.
type Point struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Demand int     `json:"demand"`
}

// DistanceMatrix holds arc costs between point indices.
type DistanceMatrix [][]float64

// EuclideanMatrix returns the symmetric pairwise distance matrix of points.
func EuclideanMatrix(points []Point) DistanceMatrix {
	n := len(points)
	m := make(DistanceMatrix, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := math.Hypot(points[i].X-points[j].X, points[i].Y-points[j].Y)
			m[i][j] = d
			m[j][i] = d
		}
	}
	return m
}

// PathDistance sums consecutive arcs along nodes.
func (m DistanceMatrix) PathDistance(nodes []int) float64 {
	total := 0.0
	for i := 0; i < len(nodes)-1; i++ {
		total += m[nodes[i]][nodes[i+1]]
	}
	return total
}
