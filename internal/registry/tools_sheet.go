package registry

import (
	"context"

	"github.com/vinodismyname/sheetrelay/internal/sheets"
	"github.com/vinodismyname/sheetrelay/pkg/result"
	"github.com/xuri/excelize/v2"
)

type copySheetInput struct {
	Filepath    string `json:"filepath" validate:"required,filepath_ext"`
	SourceSheet string `json:"source_sheet" validate:"required,sheetname"`
	TargetSheet string `json:"target_sheet" validate:"required,sheetname"`
}

type deleteSheetInput struct {
	Filepath  string `json:"filepath" validate:"required,filepath_ext"`
	SheetName string `json:"sheet_name" validate:"required,sheetname"`
}

type renameSheetInput struct {
	Filepath string `json:"filepath" validate:"required,filepath_ext"`
	OldName  string `json:"old_name" validate:"required,sheetname"`
	NewName  string `json:"new_name" validate:"required,sheetname"`
}

var sheetKinds = []result.Kind{result.Sheet}

func (e *Env) sheetTools() []tool {
	return []tool{
		{
			desc: Descriptor{
				Name:        "copy_worksheet",
				Description: "Copy a worksheet, including values and styles, to a new sheet in the same workbook.",
				Params: []Param{
					localFileParam(),
					{Name: "source_sheet", Type: String, Required: true, Description: "Sheet to copy"},
					{Name: "target_sheet", Type: String, Required: true, Description: "Name of the new sheet"},
				},
				Write: true,
			},
			handler: Typed("copy_worksheet", sheetKinds, e.copySheet),
		},
		{
			desc: Descriptor{
				Name:        "delete_worksheet",
				Description: "Delete a worksheet. The last remaining sheet cannot be deleted.",
				Params:      []Param{localFileParam(), sheetParam(true)},
				Write:       true,
			},
			handler: Typed("delete_worksheet", sheetKinds, e.deleteSheet),
		},
		{
			desc: Descriptor{
				Name:        "rename_worksheet",
				Description: "Rename a worksheet. The new name must not already exist.",
				Params: []Param{
					localFileParam(),
					{Name: "old_name", Type: String, Required: true, Description: "Current sheet name"},
					{Name: "new_name", Type: String, Required: true, Description: "New sheet name"},
				},
				Write: true,
			},
			handler: Typed("rename_worksheet", sheetKinds, e.renameSheet),
		},
	}
}

func (e *Env) copySheet(ctx context.Context, in *copySheetInput) (result.Result, error) {
	_, err := e.write(ctx, in.Filepath, func(f *excelize.File) error {
		return sheets.CopySheet(f, in.SourceSheet, in.TargetSheet)
	})
	if err != nil {
		return nil, err
	}
	return result.OK("Sheet '%s' copied to '%s'", in.SourceSheet, in.TargetSheet), nil
}

func (e *Env) deleteSheet(ctx context.Context, in *deleteSheetInput) (result.Result, error) {
	_, err := e.write(ctx, in.Filepath, func(f *excelize.File) error {
		return sheets.DeleteSheet(f, in.SheetName)
	})
	if err != nil {
		return nil, err
	}
	return result.OK("Sheet '%s' deleted", in.SheetName), nil
}

func (e *Env) renameSheet(ctx context.Context, in *renameSheetInput) (result.Result, error) {
	_, err := e.write(ctx, in.Filepath, func(f *excelize.File) error {
		return sheets.RenameSheet(f, in.OldName, in.NewName)
	})
	if err != nil {
		return nil, err
	}
	return result.OK("Sheet renamed from '%s' to '%s'", in.OldName, in.NewName), nil
}
