package sheets

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// Merge merges the span into a single cell.
func Merge(f *excelize.File, sheet string, span Range) error {
	if _, err := sheetIndex(f, "merge", sheet); err != nil {
		return err
	}
	if err := f.MergeCell(sheet, span.Start(), span.End()); err != nil {
		return &SheetError{Operation: "merge", SheetName: sheet, Cause: err}
	}
	return nil
}

// Unmerge removes a merge that covers exactly the span.
func Unmerge(f *excelize.File, sheet string, span Range) error {
	merged, err := MergedRanges(f, sheet)
	if err != nil {
		return err
	}
	want := span.Start() + ":" + span.End()
	found := false
	for _, m := range merged {
		if m.Range == want {
			found = true
			break
		}
	}
	if !found {
		return &SheetError{Operation: "unmerge", SheetName: sheet, Cause: fmt.Errorf("range %s is not merged", want)}
	}
	if err := f.UnmergeCell(sheet, span.Start(), span.End()); err != nil {
		return &SheetError{Operation: "unmerge", SheetName: sheet, Cause: err}
	}
	return nil
}

// MergedRange is one merged area and the value shown in it.
type MergedRange struct {
	Range string `json:"range"`
	Value string `json:"value,omitempty"`
}

// MergedRanges lists the merged areas of a sheet.
func MergedRanges(f *excelize.File, sheet string) ([]MergedRange, error) {
	if _, err := sheetIndex(f, "read merges", sheet); err != nil {
		return nil, err
	}
	cells, err := f.GetMergeCells(sheet)
	if err != nil {
		return nil, &SheetError{Operation: "read merges", SheetName: sheet, Cause: err}
	}
	out := make([]MergedRange, 0, len(cells))
	for _, c := range cells {
		out = append(out, MergedRange{Range: c.GetStartAxis() + ":" + c.GetEndAxis(), Value: c.GetCellValue()})
	}
	return out, nil
}

// CopyRange copies values, formulas and styles of src to the block whose top-left
// is target on targetSheet (defaults to sheet). It returns the number of cells copied.
func CopyRange(f *excelize.File, sheet string, src Range, targetSheet, target string) (int, error) {
	if targetSheet == "" {
		targetSheet = sheet
	}
	if _, err := sheetIndex(f, "copy range", sheet); err != nil {
		return 0, err
	}
	if _, err := sheetIndex(f, "copy range", targetSheet); err != nil {
		return 0, err
	}
	tc, tr, err := ParseCell("target_start", target)
	if err != nil {
		return 0, err
	}
	if tc+src.Cols()-1 > excelize.MaxColumns || tr+src.Rows()-1 > excelize.TotalRows {
		return 0, invalid("target_start", target, "places the copy outside worksheet limits")
	}
	// Walk away from the overlap so no source cell is overwritten before it is read.
	sameSheet := targetSheet == sheet
	rowBack := sameSheet && tr > src.StartRow
	colBack := sameSheet && tc > src.StartCol
	n := 0
	for i := 0; i < src.Rows(); i++ {
		r := i
		if rowBack {
			r = src.Rows() - 1 - i
		}
		for j := 0; j < src.Cols(); j++ {
			c := j
			if colBack {
				c = src.Cols() - 1 - j
			}
			from, _ := excelize.CoordinatesToCellName(src.StartCol+c, src.StartRow+r)
			to, _ := excelize.CoordinatesToCellName(tc+c, tr+r)
			if err := copyCell(f, sheet, from, targetSheet, to); err != nil {
				return n, &SheetError{Operation: "copy range", SheetName: targetSheet, Cause: err}
			}
			n++
		}
	}
	return n, nil
}

// DeleteRange clears the span and shifts the cells below it up, or the cells to
// its right left, to close the gap.
func DeleteRange(f *excelize.File, sheet string, span Range, shift string) error {
	if shift != "up" && shift != "left" {
		return invalid("shift_direction", shift, "must be 'up' or 'left'")
	}
	if _, err := sheetIndex(f, "delete range", sheet); err != nil {
		return err
	}
	rows, cols, err := Extent(f, sheet)
	if err != nil {
		return err
	}
	move := func(fromCol, fromRow, toCol, toRow int) error {
		from, _ := excelize.CoordinatesToCellName(fromCol, fromRow)
		to, _ := excelize.CoordinatesToCellName(toCol, toRow)
		return copyCell(f, sheet, from, sheet, to)
	}
	for r := span.StartRow; r <= span.EndRow; r++ {
		for c := span.StartCol; c <= span.EndCol; c++ {
			if err := clearCell(f, sheet, c, r); err != nil {
				return &SheetError{Operation: "delete range", SheetName: sheet, Cause: err}
			}
		}
	}
	switch shift {
	case "up":
		h := span.Rows()
		for c := span.StartCol; c <= span.EndCol; c++ {
			for r := span.EndRow + 1; r <= rows; r++ {
				if err := move(c, r, c, r-h); err != nil {
					return &SheetError{Operation: "delete range", SheetName: sheet, Cause: err}
				}
			}
			for r := max(span.StartRow, rows-h+1); r <= rows; r++ {
				if err := clearCell(f, sheet, c, r); err != nil {
					return &SheetError{Operation: "delete range", SheetName: sheet, Cause: err}
				}
			}
		}
	case "left":
		w := span.Cols()
		for r := span.StartRow; r <= span.EndRow; r++ {
			for c := span.EndCol + 1; c <= cols; c++ {
				if err := move(c, r, c-w, r); err != nil {
					return &SheetError{Operation: "delete range", SheetName: sheet, Cause: err}
				}
			}
			for c := max(span.StartCol, cols-w+1); c <= cols; c++ {
				if err := clearCell(f, sheet, c, r); err != nil {
					return &SheetError{Operation: "delete range", SheetName: sheet, Cause: err}
				}
			}
		}
	}
	return nil
}

// RangeReport describes a validated range against the sheet's used area.
type RangeReport struct {
	Sheet      string `json:"sheet"`
	Range      string `json:"range"`
	Rows       int    `json:"rows"`
	Columns    int    `json:"columns"`
	DataExtent string `json:"data_extent,omitempty"`
	WithinData bool   `json:"within_data"`
}

// ValidateRange checks the sheet exists and relates span to the used area.
func ValidateRange(f *excelize.File, sheet string, span Range) (*RangeReport, error) {
	if _, err := sheetIndex(f, "validate range", sheet); err != nil {
		return nil, err
	}
	rows, cols, err := Extent(f, sheet)
	if err != nil {
		return nil, err
	}
	rep := &RangeReport{Sheet: sheet, Range: span.String(), Rows: span.Rows(), Columns: span.Cols()}
	if rows > 0 && cols > 0 {
		used := Range{StartCol: 1, StartRow: 1, EndCol: cols, EndRow: rows}
		rep.DataExtent = used.String()
		rep.WithinData = used.Contains(span.StartCol, span.StartRow) && used.Contains(span.EndCol, span.EndRow)
	}
	return rep, nil
}

func copyCell(f *excelize.File, sheet, from, targetSheet, to string) error {
	style, err := f.GetCellStyle(sheet, from)
	if err != nil {
		return err
	}
	formula, err := f.GetCellFormula(sheet, from)
	if err != nil {
		return err
	}
	if formula != "" {
		if err := f.SetCellFormula(targetSheet, to, formula); err != nil {
			return err
		}
	} else {
		v, err := typedValue(f, sheet, from)
		if err != nil {
			return err
		}
		if err := f.SetCellFormula(targetSheet, to, ""); err != nil {
			return err
		}
		if err := f.SetCellValue(targetSheet, to, v); err != nil {
			return err
		}
	}
	return f.SetCellStyle(targetSheet, to, to, style)
}

func clearCell(f *excelize.File, sheet string, col, row int) error {
	cell, _ := excelize.CoordinatesToCellName(col, row)
	if err := f.SetCellFormula(sheet, cell, ""); err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, cell, nil); err != nil {
		return err
	}
	return f.SetCellStyle(sheet, cell, cell, 0)
}

// typedValue reads a cell keeping numbers and booleans typed.
func typedValue(f *excelize.File, sheet, cell string) (any, error) {
	raw, err := f.GetCellValue(sheet, cell, excelize.Options{RawCellValue: true})
	if err != nil || raw == "" {
		return nil, err
	}
	typ, err := f.GetCellType(sheet, cell)
	if err != nil {
		return raw, nil
	}
	switch typ {
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return n, nil
		}
	case excelize.CellTypeBool:
		return raw == "1" || raw == "TRUE", nil
	}
	return raw, nil
}
