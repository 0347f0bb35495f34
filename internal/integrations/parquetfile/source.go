// Package parquetfile reads scenarios stored as Parquet tables.
package parquetfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	pq "github.com/parquet-go/parquet-go"

	"cvrpplan/internal/integrations"
)

type Source struct{}

func (Source) Name() string { return "parquet" }

func (Source) Supports(path string) bool { return integrations.HasExt(path, ".parquet") }

func (s Source) Load(ctx context.Context, path string) (integrations.Scenario, error) {
	sc := integrations.Scenario{Name: integrations.ScenarioName(path), Source: s.Name()}
	f, err := os.Open(path)
	if err != nil {
		return sc, err
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		return sc, err
	}
	pf, err := pq.OpenFile(f, stat.Size())
	if err != nil {
		return sc, fmt.Errorf("parquetfile: %w", err)
	}

	fields := pf.Schema().Fields()
	header := make([]string, len(fields))
	for i, fld := range fields {
		header[i] = fld.Name()
	}
	cols, err := integrations.LocateColumns(header)
	if err != nil {
		return sc, err
	}

	reader := pq.NewReader(f)
	defer reader.Close()
	buf := make([]pq.Row, 128)
	line := 0
	for {
		if err := ctx.Err(); err != nil {
			return sc, err
		}
		n, err := reader.ReadRows(buf)
		for _, row := range buf[:n] {
			line++
			x, xerr := number(row, cols.X)
			y, yerr := number(row, cols.Y)
			d, derr := number(row, cols.Demand)
			if e := errors.Join(xerr, yerr, derr); e != nil {
				return sc, fmt.Errorf("row %d: %w", line, e)
			}
			p, perr := integrations.MakePoint(x, y, d)
			if perr != nil {
				return sc, fmt.Errorf("row %d: %w", line, perr)
			}
			sc.Points = append(sc.Points, p)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return sc, fmt.Errorf("parquetfile: %w", err)
		}
	}
	if len(sc.Points) == 0 {
		return sc, integrations.ErrNoPoints
	}
	return sc, nil
}

func number(row pq.Row, column int) (float64, error) {
	for _, v := range row {
		if v.Column() != column {
			continue
		}
		if v.IsNull() {
			return 0, fmt.Errorf("%w: null in column %d", integrations.ErrBadRow, column)
		}
		switch v.Kind() {
		case pq.Int32:
			return float64(v.Int32()), nil
		case pq.Int64:
			return float64(v.Int64()), nil
		case pq.Float:
			return float64(v.Float()), nil
		case pq.Double:
			return v.Double(), nil
		case pq.ByteArray:
			f, err := strconv.ParseFloat(strings.TrimSpace(string(v.ByteArray())), 64)
			if err != nil {
				return 0, fmt.Errorf("%w: %v", integrations.ErrBadRow, err)
			}
			return f, nil
		}
		return 0, fmt.Errorf("%w: column %d has kind %s", integrations.ErrBadRow, column, v.Kind())
	}
	return 0, fmt.Errorf("%w: column %d missing", integrations.ErrBadRow, column)
}
