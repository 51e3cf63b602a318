package results

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const xlsxSheet = "Results"

// XLSXRenderer writes the visible rows to a single-sheet workbook.
type XLSXRenderer struct{}

func (r *XLSXRenderer) SupportedFormat() Format {
	return FormatXLSX
}

func (r *XLSXRenderer) Render(w io.Writer, t *Table, _ Options) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName(f.GetSheetName(0), xlsxSheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	for rowIdx, record := range t.Records() {
		for colIdx, value := range record {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
			if err != nil {
				return fmt.Errorf("computing cell name: %w", err)
			}
			if err := f.SetCellStr(xlsxSheet, cell, value); err != nil {
				return fmt.Errorf("writing cell %s: %w", cell, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
