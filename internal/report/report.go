// Package report renders planned routes as text, SVG and GeoJSON files.
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cvrpplan/internal/opt"
)

// FeetToKm converts planar feet coordinates to kilometres.
const FeetToKm = 0.0003048

const (
	tripRule    = 60
	summaryRule = 34
)

// WriteRoutes writes one block per trip: distance and load, the stop path,
// then a rule. factor scales distances into kilometres.
func WriteRoutes(w io.Writer, sol opt.Solution, factor float64) error {
	bw := bufio.NewWriter(w)
	for i, rt := range sol.Routes {
		fmt.Fprintf(bw, "Trip %d – Distance: %.2f km | Load: %d\n", i+1, rt.Distance*factor, rt.Demand)
		bw.WriteString(Path(rt.Stops))
		bw.WriteString("\n" + strings.Repeat("-", tripRule) + "\n")
	}
	return bw.Flush()
}

// Path joins stops with arrows.
func Path(stops []int) string {
	parts := make([]string, len(stops))
	for i, s := range stops {
		parts[i] = strconv.Itoa(s)
	}
	return strings.Join(parts, " -> ")
}

// Summary accumulates per-scenario totals in kilometres.
type Summary struct {
	Entries []SummaryEntry
}

type SummaryEntry struct {
	Scenario string
	Km       float64
}

func (s *Summary) Add(scenario string, km float64) {
	s.Entries = append(s.Entries, SummaryEntry{Scenario: scenario, Km: km})
}

func (s *Summary) Total() float64 {
	total := 0.0
	for _, e := range s.Entries {
		total += e.Km
	}
	return total
}

func (s *Summary) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	b.WriteString("Total distance per scenario:\n\n")
	for _, e := range s.Entries {
		fmt.Fprintf(&b, "%s: %.2f km\n", e.Scenario, e.Km)
	}
	b.WriteString("\n" + strings.Repeat("-", summaryRule) + "\n")
	fmt.Fprintf(&b, "Grand total: %.2f km\n", s.Total())
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// RunDir creates base/<timestamp> for one batch run.
func RunDir(base string, now time.Time) (string, error) {
	dir := filepath.Join(base, now.Format("2006-01-02_15-04-05"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Files names the artifacts written for one scenario.
type Files struct {
	Routes  string
	Plot    string
	GeoJSON string
}

// WriteScenario writes the text report, SVG plot and GeoJSON of one solved
// scenario into dir.
func WriteScenario(dir, name string, points []opt.Point, sol opt.Solution) (Files, error) {
	files := Files{
		Routes:  filepath.Join(dir, name+"_routes.txt"),
		Plot:    filepath.Join(dir, name+"_plot.svg"),
		GeoJSON: filepath.Join(dir, name+"_routes.geojson"),
	}
	if err := writeFile(files.Routes, func(w io.Writer) error { return WriteRoutes(w, sol, FeetToKm) }); err != nil {
		return files, err
	}
	if err := writeFile(files.Plot, func(w io.Writer) error { return WriteSVG(w, name, points, sol) }); err != nil {
		return files, err
	}
	if err := writeFile(files.GeoJSON, func(w io.Writer) error { return WriteGeoJSON(w, points, sol) }); err != nil {
		return files, err
	}
	return files, nil
}

func writeFile(path string, render func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render(f); err != nil {
		f.Close()
		return fmt.Errorf("report: %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
