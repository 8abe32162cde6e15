// Package xlsx writes condition reports as spreadsheets: one sheet named after the
// condition, a frame column, one column per sample, then Mean, SEM and N.
package xlsx

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/John-Robertt/wormruler/internal/aggregate"
	"github.com/John-Robertt/wormruler/internal/domain"
	"github.com/John-Robertt/wormruler/internal/infra/fsx"
)

const (
	HeaderFrame = "Frame"
	HeaderMean  = "Mean"
	HeaderSEM   = "SEM"
	HeaderN     = "N"

	maxSheetName = 31
)

// SheetName maps a condition name onto a valid worksheet name.
func SheetName(condition string) string {
	r := strings.NewReplacer(":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_")
	name := strings.Trim(r.Replace(condition), "'")
	if rs := []rune(name); len(rs) > maxSheetName {
		name = string(rs[:maxSheetName])
	}
	if strings.TrimSpace(name) == "" {
		return "Sheet1"
	}
	return name
}

// Encode writes rep as a workbook to w.
func Encode(w io.Writer, rep aggregate.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := SheetName(rep.Condition)
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("name sheet %q: %w", sheet, err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}

	header := make([]any, 0, len(rep.Columns)+4)
	header = append(header, HeaderFrame)
	for _, c := range rep.Columns {
		header = append(header, c)
	}
	header = append(header, HeaderMean, HeaderSEM, HeaderN)
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	for i, row := range rep.Rows {
		cells := make([]any, 0, len(header))
		cells = append(cells, i)
		for _, v := range row.Values {
			cells = append(cells, cellValue(v))
		}
		cells = append(cells, cellValue(row.Mean), cellValue(row.SEM), row.N)

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}

	_, err = f.WriteTo(w)
	return err
}

// Write stores rep at path atomically.
func Write(path string, rep aggregate.Report) error {
	return fsx.WriteAtomic(path, func(w io.Writer) error { return Encode(w, rep) })
}

// cellValue leaves missing values as empty cells.
func cellValue(l domain.Length) any {
	if !l.Valid {
		return nil
	}
	return l.V
}
