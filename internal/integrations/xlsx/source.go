// Package xlsx reads scenarios from the first sheet of an Excel workbook.
package xlsx

import (
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"

	"cvrpplan/internal/integrations"
)

// Source reads Sheet, or the first sheet when Sheet is empty.
type Source struct {
	Sheet string
}

func (Source) Name() string { return "xlsx" }

func (Source) Supports(path string) bool { return integrations.HasExt(path, ".xlsx", ".xlsm") }

func (s Source) Load(ctx context.Context, path string) (integrations.Scenario, error) {
	name := integrations.ScenarioName(path)
	f, err := excelize.OpenFile(path)
	if err != nil {
		return integrations.Scenario{Name: name}, fmt.Errorf("xlsx: %w", err)
	}
	defer f.Close()

	sheet := s.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return integrations.Scenario{Name: name}, errors.New("xlsx: workbook has no sheets")
		}
		sheet = sheets[0]
	}
	if err := ctx.Err(); err != nil {
		return integrations.Scenario{Name: name}, err
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return integrations.Scenario{Name: name}, fmt.Errorf("xlsx: sheet %q: %w", sheet, err)
	}
	return integrations.Rows(name, s.Name(), rows)
}
