package sheets

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

// DefaultTableStyle is applied when no table_style is given.
const DefaultTableStyle = "TableStyleMedium9"

var tableNameRe = regexp.MustCompile(`^[A-Za-z_\\][A-Za-z0-9_.]{0,254}$`)

// CreateTable formats span as a native Excel table and returns the table name.
func CreateTable(f *excelize.File, sheet string, span Range, name, style string) (string, error) {
	if _, err := sheetIndex(f, "create table", sheet); err != nil {
		return "", err
	}
	if span.Rows() < 2 {
		return "", &DataError{Operation: "create table", Location: span.String(), Cause: fmt.Errorf("range needs a header row and at least one data row")}
	}
	if name == "" {
		name = "Table_" + uuid.NewString()[:8]
	}
	if !tableNameRe.MatchString(name) || looksLikeCell(name) {
		return "", invalid("table_name", name, "must start with a letter or underscore and contain only letters, digits, '_' or '.'")
	}
	if style == "" {
		style = DefaultTableStyle
	}
	showHeader := true
	showStripes := true
	tbl := &excelize.Table{
		Range:          span.Start() + ":" + span.End(),
		Name:           name,
		StyleName:      style,
		ShowHeaderRow:  &showHeader,
		ShowRowStripes: &showStripes,
	}
	if err := f.AddTable(sheet, tbl); err != nil {
		return "", &DataError{Operation: "create table", Location: span.String(), Cause: err}
	}
	return name, nil
}

// looksLikeCell rejects names such as "A1" or "R1C1" that Excel reads as references.
func looksLikeCell(name string) bool {
	if _, _, err := excelize.CellNameToCoordinates(name); err == nil {
		return true
	}
	up := strings.ToUpper(name)
	return len(up) > 1 && up[0] == 'R' && unicode.IsDigit(rune(up[1]))
}
