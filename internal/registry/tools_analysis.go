package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/vinodismyname/sheetrelay/internal/sheets"
	"github.com/vinodismyname/sheetrelay/pkg/result"
	"github.com/vinodismyname/sheetrelay/pkg/validation"
	"github.com/xuri/excelize/v2"
)

var chartTypes = []string{"line", "bar", "column", "pie", "scatter", "area"}

type chartInput struct {
	Filepath   string `json:"filepath" validate:"required,filepath_ext"`
	SheetName  string `json:"sheet_name" validate:"required,sheetname"`
	DataRange  string `json:"data_range" validate:"required,a1range"`
	ChartType  string `json:"chart_type" validate:"required,oneof=line bar column pie scatter area"`
	TargetCell string `json:"target_cell" validate:"required,cellref"`
	Title      string `json:"title"`
	XAxis      string `json:"x_axis"`
	YAxis      string `json:"y_axis"`
}

type pivotInput struct {
	Filepath  string   `json:"filepath" validate:"required,filepath_ext"`
	SheetName string   `json:"sheet_name" validate:"required,sheetname"`
	DataRange string   `json:"data_range" validate:"required,a1range"`
	Rows      []string `json:"rows" validate:"required,min=1,dive,required"`
	Values    []string `json:"values" validate:"required,min=1,dive,required"`
	Columns   []string `json:"columns" validate:"omitempty,dive,required"`
	AggFunc   string   `json:"agg_func" validate:"required"`
}

type tableInput struct {
	Filepath   string `json:"filepath" validate:"required,filepath_ext"`
	SheetName  string `json:"sheet_name" validate:"required,sheetname"`
	DataRange  string `json:"data_range" validate:"required,a1range"`
	TableName  string `json:"table_name"`
	TableStyle string `json:"table_style" validate:"required"`
}

func dataRangeParam() Param {
	return Param{Name: "data_range", Type: String, Required: true, Description: "Source range with a header row, e.g. A1:D20"}
}

func (e *Env) analysisTools() []tool {
	return []tool{
		{
			desc: Descriptor{
				Name:        "create_chart",
				Description: "Create a chart from a range whose first column holds categories and whose other columns hold series.",
				Params: []Param{
					localFileParam(),
					sheetParam(true),
					dataRangeParam(),
					{Name: "chart_type", Type: String, Required: true, Enum: chartTypes, Description: "Chart type"},
					cellParam("target_cell", "Cell the chart is anchored at", true),
					{Name: "title", Type: String, Default: "", Description: "Chart title"},
					{Name: "x_axis", Type: String, Default: "", Description: "X axis title"},
					{Name: "y_axis", Type: String, Default: "", Description: "Y axis title"},
				},
				Write: true,
			},
			handler: Typed("create_chart", []result.Kind{result.Chart, result.Sheet}, e.createChart),
		},
		{
			desc: Descriptor{
				Name:        "create_pivot_table",
				Description: "Summarize a range into a pivot table on a new '<sheet>_pivot' sheet. Field names come from the header row.",
				Params: []Param{
					localFileParam(),
					sheetParam(true),
					dataRangeParam(),
					{Name: "rows", Type: StringList, Required: true, Description: "Header names to group rows by"},
					{Name: "values", Type: StringList, Required: true, Description: "Header names to aggregate"},
					{Name: "columns", Type: StringList, Description: "Header names to spread across columns"},
					{Name: "agg_func", Type: String, Default: "mean", Description: "mean, sum, count, min, max, product, stddev or var"},
				},
				Write: true,
			},
			handler: Typed("create_pivot_table", []result.Kind{result.Pivot, result.Sheet}, e.createPivot),
		},
		{
			desc: Descriptor{
				Name:        "create_table",
				Description: "Format a range as a native Excel table.",
				Params: []Param{
					localFileParam(),
					sheetParam(true),
					dataRangeParam(),
					{Name: "table_name", Type: String, Description: "Table name (generated when omitted)"},
					{Name: "table_style", Type: String, Default: sheets.DefaultTableStyle, Description: "Built-in table style"},
				},
				Write: true,
			},
			handler: Typed("create_table", []result.Kind{result.Data, result.Sheet}, e.createTable),
		},
	}
}

func (e *Env) createChart(ctx context.Context, in *chartInput) (result.Result, error) {
	span, err := dataSpan(in.SheetName, in.DataRange)
	if err != nil {
		return nil, err
	}
	opts := sheets.ChartOptions{
		Type:   in.ChartType,
		Data:   span,
		Target: in.TargetCell,
		Title:  in.Title,
		XAxis:  in.XAxis,
		YAxis:  in.YAxis,
	}
	if _, err := e.write(ctx, in.Filepath, func(f *excelize.File) error {
		return sheets.CreateChart(f, in.SheetName, opts)
	}); err != nil {
		return nil, err
	}
	return result.OK("%s chart created successfully at %s", in.ChartType, strings.ToUpper(in.TargetCell)), nil
}

func (e *Env) createPivot(ctx context.Context, in *pivotInput) (result.Result, error) {
	span, err := dataSpan(in.SheetName, in.DataRange)
	if err != nil {
		return nil, err
	}
	opts := sheets.PivotOptions{
		Data:    span,
		Rows:    in.Rows,
		Values:  in.Values,
		Columns: in.Columns,
		AggFunc: in.AggFunc,
	}
	var target string
	if _, err := e.write(ctx, in.Filepath, func(f *excelize.File) error {
		var err error
		target, err = sheets.CreatePivotTable(f, in.SheetName, opts)
		return err
	}); err != nil {
		return nil, err
	}
	return result.OK("Pivot table created at %s!A1", target), nil
}

func (e *Env) createTable(ctx context.Context, in *tableInput) (result.Result, error) {
	span, err := dataSpan(in.SheetName, in.DataRange)
	if err != nil {
		return nil, err
	}
	var name string
	if _, err := e.write(ctx, in.Filepath, func(f *excelize.File) error {
		var err error
		name, err = sheets.CreateTable(f, in.SheetName, span, in.TableName, in.TableStyle)
		return err
	}); err != nil {
		return nil, err
	}
	return result.OK("Created table '%s' in %s!%s", name, in.SheetName, span), nil
}

// dataSpan parses data_range. A sheet qualifier must name sheet_name; the
// delegates read from sheet_name only.
func dataSpan(sheet, ref string) (sheets.Range, error) {
	qualifier, span, err := sheets.ParseRange("data_range", ref)
	if err != nil {
		return sheets.Range{}, err
	}
	if qualifier != "" && !strings.EqualFold(strings.ReplaceAll(qualifier, "''", "'"), sheet) {
		return sheets.Range{}, &validation.Error{
			Field:   "data_range",
			Message: fmt.Sprintf("refers to sheet %q but sheet_name is %q", qualifier, sheet),
		}
	}
	return span, nil
}
