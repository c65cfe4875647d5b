package sheets

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/xuri/excelize/v2"
)

// WriteRows writes a row-major grid starting at startCell and returns the range
// that was written. Strings starting with "=" are stored as formulas.
func WriteRows(f *excelize.File, sheet, startCell string, rows [][]any) (Range, error) {
	if len(rows) == 0 {
		return Range{}, invalid("data", rows, "must contain at least one row")
	}
	sc, sr, err := ParseCell("start_cell", startCell)
	if err != nil {
		return Range{}, err
	}
	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	if width == 0 {
		return Range{}, invalid("data", rows, "must contain at least one value")
	}
	written := Range{StartCol: sc, StartRow: sr, EndCol: sc + width - 1, EndRow: sr + len(rows) - 1}
	if written.EndRow > excelize.TotalRows || written.EndCol > excelize.MaxColumns {
		return Range{}, &DataError{Operation: "write", Location: written.String(), Cause: errors.New("data exceeds worksheet limits")}
	}
	for i, row := range rows {
		for j, v := range row {
			cell, _ := excelize.CoordinatesToCellName(sc+j, sr+i)
			if err := writeCell(f, sheet, cell, v); err != nil {
				return Range{}, err
			}
		}
	}
	return written, nil
}

func writeCell(f *excelize.File, sheet, cell string, v any) error {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		if len(val) > MaxCellValueLength {
			return &DataError{Operation: "write", Location: cell, Cause: fmt.Errorf("value exceeds %d characters", MaxCellValueLength)}
		}
		if strings.HasPrefix(val, "=") && len(val) > 1 {
			if err := f.SetCellFormula(sheet, cell, val); err != nil {
				return wrapWrite(sheet, cell, err)
			}
			return nil
		}
		return wrapWrite(sheet, cell, f.SetCellValue(sheet, cell, val))
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
			return wrapWrite(sheet, cell, f.SetCellValue(sheet, cell, int64(val)))
		}
		return wrapWrite(sheet, cell, f.SetCellValue(sheet, cell, val))
	case bool, int, int64:
		return wrapWrite(sheet, cell, f.SetCellValue(sheet, cell, val))
	default:
		return wrapWrite(sheet, cell, f.SetCellValue(sheet, cell, fmt.Sprint(val)))
	}
}

func wrapWrite(sheet, cell string, err error) error {
	if err == nil {
		return nil
	}
	if mapped, ok := classifySheetErr("write", sheet, err); ok {
		return mapped
	}
	return &DataError{Operation: "write", Location: cell, Cause: err}
}

// CellValue is one non-empty cell in a read page.
type CellValue struct {
	Address    string          `json:"address"`
	Value      string          `json:"value"`
	Row        int             `json:"row"`
	Column     int             `json:"column"`
	Validation *ValidationRule `json:"validation,omitempty"`
}

// ReadRequest selects a row window of a range.
type ReadRequest struct {
	Sheet          string
	StartCell      string
	EndCell        string
	Offset         int
	Limit          int
	WithValidation bool
}

// ReadPage is one row window of a range read.
type ReadPage struct {
	Sheet     string      `json:"sheet"`
	Range     string      `json:"range"`
	Cells     []CellValue `json:"cells"`
	Offset    int         `json:"offset"`
	Returned  int         `json:"returned_rows"`
	TotalRows int         `json:"total_rows"`
	// Empty is set when no cell anywhere in the range has a value.
	Empty bool `json:"-"`
}

// ReadRange reads up to req.Limit rows of the range starting at req.Offset rows
// from its top. Without an end cell the range extends to the used area.
func ReadRange(f *excelize.File, req ReadRequest) (*ReadPage, error) {
	sheet := req.Sheet
	if sheet == "" {
		list := f.GetSheetList()
		if len(list) == 0 {
			return nil, &WorkbookError{Operation: "read", Cause: errSheetNotFound}
		}
		sheet = list[0]
	}
	if _, err := sheetIndex(f, "read", sheet); err != nil {
		return nil, err
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, &DataError{Operation: "read", Location: sheet, Cause: err}
	}
	span, err := readSpan(rows, req.StartCell, req.EndCell)
	if err != nil {
		return nil, err
	}
	page := &ReadPage{
		Sheet:     sheet,
		Range:     span.String(),
		Offset:    req.Offset,
		TotalRows: span.Rows(),
		Empty:     !hasData(rows, span),
	}
	if req.Offset >= page.TotalRows {
		return page, nil
	}
	var rules []ValidationRule
	if req.WithValidation {
		if rules, err = DataValidations(f, sheet); err != nil {
			return nil, err
		}
	}
	first := span.StartRow + req.Offset
	last := min(span.EndRow, first+req.Limit-1)
	for r := first; r <= last; r++ {
		for c := span.StartCol; c <= span.EndCol; c++ {
			v := cellAt(rows, r, c)
			if v == "" {
				continue
			}
			addr, _ := excelize.CoordinatesToCellName(c, r)
			cv := CellValue{Address: addr, Value: v, Row: r, Column: c}
			if rule := ruleFor(rules, c, r); rule != nil {
				cv.Validation = rule
			}
			page.Cells = append(page.Cells, cv)
		}
	}
	page.Returned = last - first + 1
	return page, nil
}

func readSpan(rows [][]string, start, end string) (Range, error) {
	if start == "" {
		start = "A1"
	}
	if end != "" {
		return ParseSpan("start_cell", start, "end_cell", end)
	}
	sc, sr, err := ParseCell("start_cell", start)
	if err != nil {
		return Range{}, err
	}
	maxCol := sc
	for _, row := range rows {
		maxCol = max(maxCol, len(row))
	}
	return Range{StartCol: sc, StartRow: sr, EndCol: maxCol, EndRow: max(sr, len(rows))}, nil
}

func hasData(rows [][]string, span Range) bool {
	for r := span.StartRow; r <= min(span.EndRow, len(rows)); r++ {
		for c := span.StartCol; c <= span.EndCol; c++ {
			if cellAt(rows, r, c) != "" {
				return true
			}
		}
	}
	return false
}

func cellAt(rows [][]string, row, col int) string {
	if row-1 >= len(rows) || row < 1 {
		return ""
	}
	r := rows[row-1]
	if col-1 >= len(r) || col < 1 {
		return ""
	}
	return r[col-1]
}
