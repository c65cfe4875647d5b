package sheets

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

var aggregations = map[string]string{
	"mean": "Average", "average": "Average", "avg": "Average",
	"sum": "Sum", "count": "Count", "min": "Min", "max": "Max",
	"product": "Product", "stddev": "StdDev", "std": "StdDev", "var": "Var",
}

// PivotOptions names header fields of the source range.
type PivotOptions struct {
	Data    Range
	Rows    []string
	Values  []string
	Columns []string
	AggFunc string
}

// PivotTarget returns the sheet a pivot for sheet is placed on.
func PivotTarget(sheet string) string {
	name := sheet + "_pivot"
	if r := []rune(name); len(r) > 31 {
		name = string(r[:25]) + "_pivot"
	}
	return name
}

// CreatePivotTable builds a pivot of opts.Data on a new sheet named by PivotTarget
// and returns that sheet's name.
func CreatePivotTable(f *excelize.File, sheet string, opts PivotOptions) (string, error) {
	agg, ok := aggregations[strings.ToLower(strings.TrimSpace(opts.AggFunc))]
	if !ok {
		return "", invalid("agg_func", opts.AggFunc, "must be one of mean, sum, count, min, max, product, stddev, var")
	}
	if len(opts.Rows) == 0 {
		return "", invalid("rows", opts.Rows, "must name at least one field")
	}
	if len(opts.Values) == 0 {
		return "", invalid("values", opts.Values, "must name at least one field")
	}
	if _, err := sheetIndex(f, "pivot", sheet); err != nil {
		return "", err
	}
	if opts.Data.Rows() < 2 {
		return "", &PivotError{Operation: "create", Cause: fmt.Errorf("data_range %s needs a header row and data", opts.Data)}
	}
	headers := map[string]string{}
	for c := opts.Data.StartCol; c <= opts.Data.EndCol; c++ {
		cell, _ := excelize.CoordinatesToCellName(c, opts.Data.StartRow)
		v, err := f.GetCellValue(sheet, cell)
		if err != nil {
			return "", &PivotError{Operation: "read headers", Cause: err}
		}
		if v = strings.TrimSpace(v); v != "" {
			headers[strings.ToLower(v)] = v
		}
	}
	fields := func(names []string, subtotal string) ([]excelize.PivotTableField, error) {
		out := make([]excelize.PivotTableField, 0, len(names))
		for _, n := range names {
			h, ok := headers[strings.ToLower(strings.TrimSpace(n))]
			if !ok {
				return nil, &PivotError{Operation: "resolve fields", Cause: fmt.Errorf("field '%s' not found in header row", n)}
			}
			fld := excelize.PivotTableField{Data: h}
			if subtotal != "" {
				fld.Subtotal = subtotal
				fld.Name = fmt.Sprintf("%s of %s", subtotal, h)
			}
			out = append(out, fld)
		}
		return out, nil
	}
	rows, err := fields(opts.Rows, "")
	if err != nil {
		return "", err
	}
	data, err := fields(opts.Values, agg)
	if err != nil {
		return "", err
	}
	cols, err := fields(opts.Columns, "")
	if err != nil {
		return "", err
	}

	target := PivotTarget(sheet)
	if idx, _ := f.GetSheetIndex(target); idx >= 0 {
		return "", &PivotError{Operation: "create", Cause: fmt.Errorf("sheet '%s' already exists", target)}
	}
	if _, err := f.NewSheet(target); err != nil {
		return "", &PivotError{Operation: "create sheet", Cause: err}
	}
	d := opts.Data
	pt := &excelize.PivotTableOptions{
		DataRange:           fmt.Sprintf("%s!%s:%s", sheet, d.Start(), d.End()),
		PivotTableRange:     fmt.Sprintf("%s!A1:%s", target, pivotEnd(len(rows)+len(cols)+len(data), d.Rows())),
		Rows:                rows,
		Columns:             cols,
		Data:                data,
		RowGrandTotals:      true,
		ColGrandTotals:      true,
		ShowDrill:           true,
		ShowRowHeaders:      true,
		ShowColHeaders:      true,
		ShowLastColumn:      true,
		PivotTableStyleName: "PivotStyleMedium9",
	}
	if err := f.AddPivotTable(pt); err != nil {
		_ = f.DeleteSheet(target)
		return "", &PivotError{Operation: "create", Cause: err}
	}
	return target, nil
}

func pivotEnd(cols, rows int) string {
	end, _ := excelize.CoordinatesToCellName(max(cols, 2), max(rows, 2))
	return end
}
