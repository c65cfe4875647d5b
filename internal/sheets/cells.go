package sheets

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// MaxCellValueLength is the longest string a single cell can hold.
const MaxCellValueLength = 32767

// Range is a normalized rectangular cell range with 1-based, inclusive coordinates.
type Range struct {
	StartCol, StartRow int
	EndCol, EndRow     int
}

// String renders the range in A1 notation, collapsing single cells.
func (r Range) String() string {
	start, _ := excelize.CoordinatesToCellName(r.StartCol, r.StartRow)
	if r.StartCol == r.EndCol && r.StartRow == r.EndRow {
		return start
	}
	end, _ := excelize.CoordinatesToCellName(r.EndCol, r.EndRow)
	return start + ":" + end
}

// Start returns the top-left cell name.
func (r Range) Start() string {
	s, _ := excelize.CoordinatesToCellName(r.StartCol, r.StartRow)
	return s
}

// End returns the bottom-right cell name.
func (r Range) End() string {
	s, _ := excelize.CoordinatesToCellName(r.EndCol, r.EndRow)
	return s
}

func (r Range) Rows() int { return r.EndRow - r.StartRow + 1 }
func (r Range) Cols() int { return r.EndCol - r.StartCol + 1 }

// Contains reports whether the cell lies within the range.
func (r Range) Contains(col, row int) bool {
	return col >= r.StartCol && col <= r.EndCol && row >= r.StartRow && row <= r.EndRow
}

// ParseCell parses an A1 reference (absolute markers allowed) into coordinates.
func ParseCell(field, ref string) (int, int, error) {
	clean := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(ref), "$", ""))
	if clean == "" {
		return 0, 0, invalid(field, ref, "is required")
	}
	col, row, err := excelize.CellNameToCoordinates(clean)
	if err != nil {
		return 0, 0, invalid(field, ref, "is not a valid cell reference: %q", ref)
	}
	if row > excelize.TotalRows || col > excelize.MaxColumns {
		return 0, 0, invalid(field, ref, "is outside worksheet limits")
	}
	return col, row, nil
}

// ParseSpan builds a range from a start cell and an optional end cell. The end
// cell must not precede the start cell in either dimension.
func ParseSpan(startField, start, endField, end string) (Range, error) {
	sc, sr, err := ParseCell(startField, start)
	if err != nil {
		return Range{}, err
	}
	if strings.TrimSpace(end) == "" {
		return Range{StartCol: sc, StartRow: sr, EndCol: sc, EndRow: sr}, nil
	}
	ec, er, err := ParseCell(endField, end)
	if err != nil {
		return Range{}, err
	}
	if ec < sc || er < sr {
		return Range{}, invalid(endField, end, "must not precede %s (%s)", startField, start)
	}
	return Range{StartCol: sc, StartRow: sr, EndCol: ec, EndRow: er}, nil
}

// ParseRange parses "A1" or "A1:B2", optionally qualified with "Sheet!". The
// returned sheet is empty when no qualifier was present.
func ParseRange(field, ref string) (string, Range, error) {
	s := strings.TrimSpace(ref)
	sheet := ""
	if i := strings.LastIndex(s, "!"); i >= 0 {
		sheet = strings.Trim(s[:i], "'")
		s = s[i+1:]
	}
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 1:
		r, err := ParseSpan(field, parts[0], field, "")
		return sheet, r, err
	case 2:
		r, err := ParseSpan(field, parts[0], field, parts[1])
		return sheet, r, err
	default:
		return "", Range{}, invalid(field, ref, "is not a valid range: %q", ref)
	}
}

// absRef renders an absolute, sheet qualified reference for charts and pivots.
func absRef(sheet string, col1, row1, col2, row2 int) string {
	a, _ := excelize.CoordinatesToCellName(col1, row1, true)
	if col1 == col2 && row1 == row2 {
		return fmt.Sprintf("%s!%s", quoteSheet(sheet), a)
	}
	b, _ := excelize.CoordinatesToCellName(col2, row2, true)
	return fmt.Sprintf("%s!%s:%s", quoteSheet(sheet), a, b)
}

func quoteSheet(name string) string {
	if strings.ContainsAny(name, " -'()&,;") {
		return "'" + strings.ReplaceAll(name, "'", "''") + "'"
	}
	return name
}

// ValidateSheetName applies Excel's worksheet naming rules.
func ValidateSheetName(field, name string) error {
	n := strings.TrimSpace(name)
	if n == "" {
		return invalid(field, name, "is required")
	}
	if len([]rune(n)) > 31 {
		return invalid(field, name, "must be at most 31 characters")
	}
	if strings.ContainsAny(n, `:\/?*[]`) {
		return invalid(field, name, `must not contain any of : \ / ? * [ ]`)
	}
	return nil
}
