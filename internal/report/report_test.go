package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom/encoding/geojson"

	"cvrpplan/internal/opt"
)

var points = []opt.Point{{X: 0, Y: 0}, {X: 0, Y: 3000, Demand: 4}, {X: 4000, Y: 3000, Demand: 5}, {X: 4000, Y: 0, Demand: 6}}

var solution = opt.Solution{
	Routes: []opt.Route{
		{Stops: []int{0, 2, 1, 0}, Distance: 12000, Demand: 9},
		{Stops: []int{0, 3, 0}, Distance: 8000, Demand: 6},
	},
	TotalDistance: 20000,
}

func TestWriteRoutes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRoutes(&buf, solution, FeetToKm))
	rule := strings.Repeat("-", 60)
	want := "Trip 1 – Distance: 3.66 km | Load: 9\n0 -> 2 -> 1 -> 0\n" + rule + "\n" +
		"Trip 2 – Distance: 2.44 km | Load: 6\n0 -> 3 -> 0\n" + rule + "\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteRoutesEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRoutes(&buf, opt.Solution{}, FeetToKm))
	assert.Empty(t, buf.String())
}

func TestSummary(t *testing.T) {
	var s Summary
	s.Add("r1.csv", 12.346)
	s.Add("r2.csv", 7.5)
	assert.InDelta(t, 19.846, s.Total(), 1e-12)

	var buf bytes.Buffer
	_, err := s.WriteTo(&buf)
	require.NoError(t, err)
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Total distance per scenario:\n\nr1.csv: 12.35 km\nr2.csv: 7.50 km\n"))
	assert.True(t, strings.HasSuffix(out, "\n"+strings.Repeat("-", 34)+"\nGrand total: 19.85 km\n"))
}

func TestWriteSVG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSVG(&buf, "r1 <north>", points, solution))
	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "<polyline"))
	assert.Equal(t, 3, strings.Count(out, "<circle"))
	assert.Contains(t, out, "r1 &lt;north&gt;")
	assert.Contains(t, out, palette[0])
	assert.Contains(t, out, palette[1])
	assert.True(t, strings.HasSuffix(out, "</svg>\n"))
}

func TestWriteSVGRejectsUnknownStop(t *testing.T) {
	bad := opt.Solution{Routes: []opt.Route{{Stops: []int{0, 9, 0}}}}
	assert.Error(t, WriteSVG(&bytes.Buffer{}, "x", points, bad))
	assert.Error(t, WriteSVG(&bytes.Buffer{}, "x", nil, opt.Solution{}))
}

func TestProjectionKeepsNorthUp(t *testing.T) {
	proj := newProjection(Bounds(points))
	_, yLow := proj.xy(points[0])
	_, yHigh := proj.xy(points[1])
	assert.Less(t, yHigh, yLow)
	x, y := proj.xy(points[2])
	assert.LessOrEqual(t, x, float64(svgWidth-svgMargin)+1e-9)
	assert.GreaterOrEqual(t, y, float64(svgMargin)-1e-9)
}

func TestWriteGeoJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteGeoJSON(&buf, points, solution))

	var fc geojson.FeatureCollection
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fc))
	require.Len(t, fc.Features, len(points)+len(solution.Routes))
	assert.Equal(t, "depot", fc.Features[0].Properties["role"])
	trip := fc.Features[len(points)]
	assert.Equal(t, "trip-1", trip.ID)
	assert.Len(t, trip.Geometry.FlatCoords(), 8)
	assert.Equal(t, float64(9), trip.Properties["load"])
}

func TestWriteScenario(t *testing.T) {
	base := t.TempDir()
	dir, err := RunDir(base, time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "2024-05-06_07-08-09"), dir)

	files, err := WriteScenario(dir, "r1.csv", points, solution)
	require.NoError(t, err)
	for _, p := range []string{files.Routes, files.Plot, files.GeoJSON} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
	assert.Equal(t, filepath.Join(dir, "r1.csv_routes.txt"), files.Routes)
}

func TestPath(t *testing.T) {
	assert.Equal(t, "0 -> 4 -> 0", Path([]int{0, 4, 0}))
	assert.Equal(t, "", Path(nil))
}
