package registry

import (
	"context"

	"github.com/vinodismyname/sheetrelay/internal/paths"
	"github.com/vinodismyname/sheetrelay/internal/sheets"
	"github.com/vinodismyname/sheetrelay/pkg/result"
	"github.com/xuri/excelize/v2"
)

type spanInput struct {
	Filepath  string `json:"filepath" validate:"required,filepath_ext"`
	SheetName string `json:"sheet_name" validate:"required,sheetname"`
	StartCell string `json:"start_cell" validate:"required,cellref"`
	EndCell   string `json:"end_cell" validate:"required,cellref,cellafter=StartCell"`
}

type sheetInput struct {
	Filepath  string `json:"filepath" validate:"required"`
	SheetName string `json:"sheet_name" validate:"required,sheetname"`
}

type copyRangeInput struct {
	Filepath    string `json:"filepath" validate:"required,filepath_ext"`
	SheetName   string `json:"sheet_name" validate:"required,sheetname"`
	SourceStart string `json:"source_start" validate:"required,cellref"`
	SourceEnd   string `json:"source_end" validate:"required,cellref,cellafter=SourceStart"`
	TargetStart string `json:"target_start" validate:"required,cellref"`
	TargetSheet string `json:"target_sheet" validate:"omitempty,sheetname"`
}

type deleteRangeInput struct {
	Filepath       string `json:"filepath" validate:"required,filepath_ext"`
	SheetName      string `json:"sheet_name" validate:"required,sheetname"`
	StartCell      string `json:"start_cell" validate:"required,cellref"`
	EndCell        string `json:"end_cell" validate:"required,cellref,cellafter=StartCell"`
	ShiftDirection string `json:"shift_direction" validate:"required,oneof=up left"`
}

type validateRangeInput struct {
	Filepath  string `json:"filepath" validate:"required"`
	SheetName string `json:"sheet_name" validate:"required,sheetname"`
	StartCell string `json:"start_cell" validate:"required,cellref"`
	EndCell   string `json:"end_cell" validate:"omitempty,cellref,cellafter=StartCell"`
}

func spanParams() []Param {
	return []Param{
		localFileParam(),
		sheetParam(true),
		cellParam("start_cell", "Top-left cell", true),
		cellParam("end_cell", "Bottom-right cell", true),
	}
}

func (e *Env) rangeTools() []tool {
	return []tool{
		{
			desc:    Descriptor{Name: "merge_cells", Description: "Merge a range of cells into one.", Params: spanParams(), Write: true},
			handler: Typed("merge_cells", sheetKinds, e.mergeCells),
		},
		{
			desc:    Descriptor{Name: "unmerge_cells", Description: "Unmerge a previously merged range.", Params: spanParams(), Write: true},
			handler: Typed("unmerge_cells", sheetKinds, e.unmergeCells),
		},
		{
			desc: Descriptor{
				Name:        "get_merged_cells",
				Description: "List the merged ranges of a worksheet.",
				Params:      []Param{remoteFileParam(), sheetParam(true)},
			},
			handler: Typed("get_merged_cells", sheetKinds, e.mergedCells),
		},
		{
			desc: Descriptor{
				Name:        "copy_range",
				Description: "Copy values, formulas and styles of a range to another location, optionally on another sheet.",
				Params: []Param{
					localFileParam(),
					sheetParam(true),
					cellParam("source_start", "Top-left cell of the source range", true),
					cellParam("source_end", "Bottom-right cell of the source range", true),
					cellParam("target_start", "Top-left cell of the destination", true),
					{Name: "target_sheet", Type: String, Description: "Destination sheet (defaults to sheet_name)"},
				},
				Write: true,
			},
			handler: Typed("copy_range", sheetKinds, e.copyRange),
		},
		{
			desc: Descriptor{
				Name:        "delete_range",
				Description: "Clear a range and shift the cells below it up, or the cells to its right left.",
				Params: append(spanParams(), Param{
					Name: "shift_direction", Type: String, Default: "up", Enum: []string{"up", "left"},
					Description: "Direction remaining cells move",
				}),
				Write: true,
			},
			handler: Typed("delete_range", sheetKinds, e.deleteRange),
		},
		{
			desc: Descriptor{
				Name:        "validate_excel_range",
				Description: "Check that a range is well formed and report how it relates to the sheet's used area.",
				Params: []Param{
					remoteFileParam(),
					sheetParam(true),
					cellParam("start_cell", "Top-left cell", true),
					cellParam("end_cell", "Bottom-right cell", false),
				},
			},
			handler: Typed("validate_excel_range", sheetKinds, e.validateRange),
		},
	}
}

func (e *Env) mergeCells(ctx context.Context, in *spanInput) (result.Result, error) {
	span, err := sheets.ParseSpan("start_cell", in.StartCell, "end_cell", in.EndCell)
	if err != nil {
		return nil, err
	}
	if _, err := e.write(ctx, in.Filepath, func(f *excelize.File) error {
		return sheets.Merge(f, in.SheetName, span)
	}); err != nil {
		return nil, err
	}
	return result.OK("Range '%s' merged", span), nil
}

func (e *Env) unmergeCells(ctx context.Context, in *spanInput) (result.Result, error) {
	span, err := sheets.ParseSpan("start_cell", in.StartCell, "end_cell", in.EndCell)
	if err != nil {
		return nil, err
	}
	if _, err := e.write(ctx, in.Filepath, func(f *excelize.File) error {
		return sheets.Unmerge(f, in.SheetName, span)
	}); err != nil {
		return nil, err
	}
	return result.OK("Range '%s' unmerged", span), nil
}

func (e *Env) mergedCells(ctx context.Context, in *sheetInput) (result.Result, error) {
	var merged []sheets.MergedRange
	err := e.read(ctx, in.Filepath, func(f *excelize.File, _ *paths.Ref) error {
		var err error
		merged, err = sheets.MergedRanges(f, in.SheetName)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result.Success{
		Message: "Found " + plural(len(merged), "merged range") + " in " + in.SheetName,
		Payload: map[string]any{"sheet": in.SheetName, "merged_ranges": merged},
	}, nil
}

func (e *Env) copyRange(ctx context.Context, in *copyRangeInput) (result.Result, error) {
	src, err := sheets.ParseSpan("source_start", in.SourceStart, "source_end", in.SourceEnd)
	if err != nil {
		return nil, err
	}
	var copied int
	if _, err := e.write(ctx, in.Filepath, func(f *excelize.File) error {
		var err error
		copied, err = sheets.CopyRange(f, in.SheetName, src, in.TargetSheet, in.TargetStart)
		return err
	}); err != nil {
		return nil, err
	}
	return result.OK("Range copied successfully (%s)", plural(copied, "cell")), nil
}

func (e *Env) deleteRange(ctx context.Context, in *deleteRangeInput) (result.Result, error) {
	span, err := sheets.ParseSpan("start_cell", in.StartCell, "end_cell", in.EndCell)
	if err != nil {
		return nil, err
	}
	if _, err := e.write(ctx, in.Filepath, func(f *excelize.File) error {
		return sheets.DeleteRange(f, in.SheetName, span, in.ShiftDirection)
	}); err != nil {
		return nil, err
	}
	return result.OK("Range %s deleted successfully", span), nil
}

func (e *Env) validateRange(ctx context.Context, in *validateRangeInput) (result.Result, error) {
	span, err := sheets.ParseSpan("start_cell", in.StartCell, "end_cell", in.EndCell)
	if err != nil {
		return nil, err
	}
	var rep *sheets.RangeReport
	err = e.read(ctx, in.Filepath, func(f *excelize.File, _ *paths.Ref) error {
		var err error
		rep, err = sheets.ValidateRange(f, in.SheetName, span)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result.Success{Message: "Range " + rep.Range + " is valid", Payload: rep}, nil
}
