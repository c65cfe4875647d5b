package sheets

import (
	"errors"
	"strings"

	"github.com/xuri/excelize/v2"
)

var chartTypes = map[string]excelize.ChartType{
	"line":    excelize.Line,
	"bar":     excelize.Bar,
	"column":  excelize.Col,
	"pie":     excelize.Pie,
	"scatter": excelize.Scatter,
	"area":    excelize.Area,
}

// ChartOptions describes a chart built from a header row plus data rows. The first
// column holds categories and every further column becomes a series.
type ChartOptions struct {
	Type   string
	Data   Range
	Target string
	Title  string
	XAxis  string
	YAxis  string
}

// CreateChart adds a chart anchored at opts.Target.
func CreateChart(f *excelize.File, sheet string, opts ChartOptions) error {
	typ := strings.ToLower(strings.TrimSpace(opts.Type))
	ct, ok := chartTypes[typ]
	if !ok {
		return invalid("chart_type", opts.Type, "must be one of line, bar, column, pie, scatter, area")
	}
	if _, err := sheetIndex(f, "chart", sheet); err != nil {
		return err
	}
	if _, _, err := ParseCell("target_cell", opts.Target); err != nil {
		return err
	}
	d := opts.Data
	if d.Cols() < 2 || d.Rows() < 2 {
		return &ChartError{Operation: "create", ChartType: typ, Cause: errors.New("data_range needs a header row, at least one data row, and a category column plus one value column")}
	}
	chart := &excelize.Chart{
		Type:      ct,
		Dimension: excelize.ChartDimension{Width: 640, Height: 480},
		Legend:    excelize.ChartLegend{Position: "bottom"},
	}
	if opts.Title != "" {
		chart.Title = []excelize.RichTextRun{{Text: opts.Title}}
	}
	if opts.XAxis != "" {
		chart.XAxis.Title = []excelize.RichTextRun{{Text: opts.XAxis}}
	}
	if opts.YAxis != "" {
		chart.YAxis.Title = []excelize.RichTextRun{{Text: opts.YAxis}}
	}
	categories := absRef(sheet, d.StartCol, d.StartRow+1, d.StartCol, d.EndRow)
	for col := d.StartCol + 1; col <= d.EndCol; col++ {
		chart.Series = append(chart.Series, excelize.ChartSeries{
			Name:       absRef(sheet, col, d.StartRow, col, d.StartRow),
			Categories: categories,
			Values:     absRef(sheet, col, d.StartRow+1, col, d.EndRow),
		})
		if ct == excelize.Pie {
			break
		}
	}
	if err := f.AddChart(sheet, strings.ToUpper(opts.Target), chart); err != nil {
		return &ChartError{Operation: "create", ChartType: typ, Cause: err}
	}
	return nil
}
