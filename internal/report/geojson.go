package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"cvrpplan/internal/opt"
)

// Features builds one Point feature per stop location and one LineString per
// trip. Coordinates stay in the scenario's planar units.
func Features(points []opt.Point, sol opt.Solution) (*geojson.FeatureCollection, error) {
	fc := &geojson.FeatureCollection{}
	for i, p := range points {
		role := "customer"
		if i == 0 {
			role = "depot"
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         fmt.Sprintf("point-%d", i),
			Geometry:   geom.NewPointFlat(geom.XY, []float64{p.X, p.Y}),
			Properties: map[string]interface{}{"role": role, "index": i, "demand": p.Demand},
		})
	}
	for i, rt := range sol.Routes {
		flat := make([]float64, 0, 2*len(rt.Stops))
		for _, s := range rt.Stops {
			if s < 0 || s >= len(points) {
				return nil, fmt.Errorf("report: route %d visits unknown point %d", i, s)
			}
			flat = append(flat, points[s].X, points[s].Y)
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       fmt.Sprintf("trip-%d", i+1),
			Geometry: geom.NewLineStringFlat(geom.XY, flat),
			Properties: map[string]interface{}{
				"trip":     i + 1,
				"stops":    rt.Stops,
				"distance": rt.Distance,
				"load":     rt.Demand,
			},
		})
	}
	return fc, nil
}

func WriteGeoJSON(w io.Writer, points []opt.Point, sol opt.Solution) error {
	fc, err := Features(points, sol)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(fc)
}
