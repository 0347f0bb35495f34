// Package integrations loads CVRP scenarios from files. Point 0 of every
// scenario is the depot.
package integrations

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cast"

	"cvrpplan/internal/opt"
)

// Column names every scenario table carries.
const (
	ColumnX      = "xFeet"
	ColumnY      = "yFeet"
	ColumnDemand = "demand"
)

var (
	ErrUnsupported = errors.New("integrations: unsupported scenario format")
	ErrNoPoints    = errors.New("integrations: scenario has no points")
	ErrBadRow      = errors.New("integrations: malformed row")
)

// Scenario is one named set of points in the order they were read.
type Scenario struct {
	Name   string
	Source string
	Points []opt.Point
}

// Instance builds the planner input for s with the given vehicle capacity.
func (s Scenario) Instance(capacity int) (*opt.Instance, error) {
	return opt.NewInstance(s.Points, capacity)
}

// ScenarioSource reads one file format.
type ScenarioSource interface {
	Name() string
	Supports(path string) bool
	Load(ctx context.Context, path string) (Scenario, error)
}

// FileError ties a load failure to its file.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string { return e.Path + ": " + e.Err.Error() }
func (e *FileError) Unwrap() error { return e.Err }

// Open loads path with the first source that supports it.
func Open(ctx context.Context, path string, sources ...ScenarioSource) (Scenario, error) {
	for _, src := range sources {
		if src.Supports(path) {
			return src.Load(ctx, path)
		}
	}
	return Scenario{}, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Base(path))
}

// LoadDir loads every file in dir that one of sources supports, in name
// order. Files that fail to load are skipped and reported together as
// *FileError values joined in the returned error; the scenarios that did load
// are returned alongside it.
func LoadDir(ctx context.Context, dir string, sources ...ScenarioSource) ([]Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []Scenario
	var errs []error
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		path := filepath.Join(dir, name)
		supported := false
		for _, src := range sources {
			if src.Supports(path) {
				supported = true
				break
			}
		}
		if !supported {
			continue
		}
		sc, err := Open(ctx, path, sources...)
		if err != nil {
			errs = append(errs, &FileError{Path: path, Err: err})
			continue
		}
		out = append(out, sc)
	}
	return out, errors.Join(errs...)
}

// HasExt reports whether path ends in one of exts, ignoring case.
func HasExt(path string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// ScenarioName is the file name a scenario is reported under.
func ScenarioName(path string) string { return filepath.Base(path) }

// Columns locates the scenario columns in a header row.
type Columns struct {
	X, Y, Demand int
}

// LocateColumns matches header cells against the scenario column names,
// ignoring case and surrounding whitespace.
func LocateColumns(header []string) (Columns, error) {
	c := Columns{X: -1, Y: -1, Demand: -1}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		switch {
		case strings.EqualFold(h, ColumnX):
			c.X = i
		case strings.EqualFold(h, ColumnY):
			c.Y = i
		case strings.EqualFold(h, ColumnDemand):
			c.Demand = i
		}
	}
	var missing []string
	if c.X < 0 {
		missing = append(missing, ColumnX)
	}
	if c.Y < 0 {
		missing = append(missing, ColumnY)
	}
	if c.Demand < 0 {
		missing = append(missing, ColumnDemand)
	}
	if len(missing) > 0 {
		return c, fmt.Errorf("integrations: missing columns %s", strings.Join(missing, ", "))
	}
	return c, nil
}

// Point parses one data row. Demand is truncated toward zero.
func (c Columns) Point(row []string) (opt.Point, error) {
	get := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	x, err := cast.ToFloat64E(get(c.X))
	if err != nil {
		return opt.Point{}, fmt.Errorf("%w: %s: %v", ErrBadRow, ColumnX, err)
	}
	y, err := cast.ToFloat64E(get(c.Y))
	if err != nil {
		return opt.Point{}, fmt.Errorf("%w: %s: %v", ErrBadRow, ColumnY, err)
	}
	d, err := cast.ToFloat64E(get(c.Demand))
	if err != nil {
		return opt.Point{}, fmt.Errorf("%w: %s: %v", ErrBadRow, ColumnDemand, err)
	}
	return MakePoint(x, y, d)
}

// MakePoint checks coordinates and truncates demand toward zero.
func MakePoint(x, y, demand float64) (opt.Point, error) {
	for _, v := range []float64{x, y, demand} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return opt.Point{}, fmt.Errorf("%w: non-finite value", ErrBadRow)
		}
	}
	if demand > math.MaxInt32 || demand < math.MinInt32 {
		return opt.Point{}, fmt.Errorf("%w: demand %g out of range", ErrBadRow, demand)
	}
	return opt.Point{X: x, Y: y, Demand: int(demand)}, nil
}

// Rows turns a header plus data rows into a scenario. Blank rows are skipped.
func Rows(name, source string, rows [][]string) (Scenario, error) {
	sc := Scenario{Name: name, Source: source}
	if len(rows) == 0 {
		return sc, ErrNoPoints
	}
	cols, err := LocateColumns(rows[0])
	if err != nil {
		return sc, err
	}
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		p, err := cols.Point(row)
		if err != nil {
			return sc, fmt.Errorf("row %d: %w", i+2, err)
		}
		sc.Points = append(sc.Points, p)
	}
	if len(sc.Points) == 0 {
		return sc, ErrNoPoints
	}
	return sc, nil
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
