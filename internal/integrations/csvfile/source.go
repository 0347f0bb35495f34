// Package csvfile reads delimited scenario files with xFeet, yFeet and demand columns.
package csvfile

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"cvrpplan/internal/integrations"
)

// Source reads ';'-delimited files unless Comma says otherwise.
type Source struct {
	Comma rune
}

func New() Source { return Source{Comma: ';'} }

func (Source) Name() string { return "csv" }

func (Source) Supports(path string) bool { return integrations.HasExt(path, ".csv", ".txt") }

func (s Source) Load(ctx context.Context, path string) (integrations.Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return integrations.Scenario{}, err
	}
	defer f.Close()
	return s.Read(ctx, integrations.ScenarioName(path), f)
}

// Read parses a scenario from r. Input that is not valid UTF-8 is decoded as
// Windows-1252, the usual encoding of spreadsheet CSV exports.
func (s Source) Read(ctx context.Context, name string, r io.Reader) (integrations.Scenario, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return integrations.Scenario{Name: name}, fmt.Errorf("csvfile: %w", err)
	}
	if !utf8.Valid(data) {
		if data, err = charmap.Windows1252.NewDecoder().Bytes(data); err != nil {
			return integrations.Scenario{Name: name}, fmt.Errorf("csvfile: %w", err)
		}
	}
	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = s.Comma
	if cr.Comma == 0 {
		cr.Comma = ';'
	}
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	var rows [][]string
	for {
		if err := ctx.Err(); err != nil {
			return integrations.Scenario{}, err
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return integrations.Scenario{Name: name}, fmt.Errorf("csvfile: %w", err)
		}
		rows = append(rows, rec)
	}
	return integrations.Rows(name, s.Name(), rows)
}
