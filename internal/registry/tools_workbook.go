package registry

import (
	"context"

	"github.com/vinodismyname/sheetrelay/internal/paths"
	"github.com/vinodismyname/sheetrelay/internal/sheets"
	"github.com/vinodismyname/sheetrelay/pkg/result"
	"github.com/xuri/excelize/v2"
)

type createWorkbookInput struct {
	Filepath string `json:"filepath" validate:"required,filepath_ext"`
}

type createWorksheetInput struct {
	Filepath  string `json:"filepath" validate:"required,filepath_ext"`
	SheetName string `json:"sheet_name" validate:"required,sheetname"`
}

type metadataInput struct {
	Filepath      string `json:"filepath" validate:"required"`
	IncludeRanges bool   `json:"include_ranges"`
}

func (e *Env) workbookTools() []tool {
	return []tool{
		{
			desc: Descriptor{
				Name:        "create_workbook",
				Description: "Create a new, empty Excel workbook. Fails if the file already exists.",
				Params:      []Param{localFileParam()},
				Write:       true,
			},
			handler: Typed("create_workbook", []result.Kind{result.Workbook}, e.createWorkbook),
		},
		{
			desc: Descriptor{
				Name:        "create_worksheet",
				Description: "Add an empty worksheet to an existing workbook.",
				Params:      []Param{localFileParam(), sheetParam(true)},
				Write:       true,
			},
			handler: Typed("create_worksheet", []result.Kind{result.Workbook, result.Sheet}, e.createWorksheet),
		},
		{
			desc: Descriptor{
				Name:        "get_workbook_metadata",
				Description: "Describe a workbook: file size and its sheets. With include_ranges, also used ranges, tables and merged cells.",
				Params: []Param{
					remoteFileParam(),
					{Name: "include_ranges", Type: Boolean, Default: false, Description: "Include used ranges, tables and merged cells per sheet"},
				},
			},
			handler: Typed("get_workbook_metadata", []result.Kind{result.Workbook, result.Sheet}, e.workbookMetadata),
		},
	}
}

func (e *Env) createWorkbook(ctx context.Context, in *createWorkbookInput) (result.Result, error) {
	p, err := e.Target("filepath", in.Filepath)
	if err != nil {
		return nil, err
	}
	err = e.Books.Hold(ctx, p, true, func() error {
		return sheets.CreateWorkbook(p)
	})
	if err != nil {
		return nil, err
	}
	return result.OK("Created workbook at %s", p), nil
}

func (e *Env) createWorksheet(ctx context.Context, in *createWorksheetInput) (result.Result, error) {
	_, err := e.write(ctx, in.Filepath, func(f *excelize.File) error {
		return sheets.CreateSheet(f, in.SheetName)
	})
	if err != nil {
		return nil, err
	}
	return result.OK("Sheet '%s' created successfully", in.SheetName), nil
}

func (e *Env) workbookMetadata(ctx context.Context, in *metadataInput) (result.Result, error) {
	var md *sheets.Metadata
	err := e.read(ctx, in.Filepath, func(f *excelize.File, ref *paths.Ref) error {
		var err error
		md, err = sheets.ReadMetadata(f, ref.Local, displayName(ref), in.IncludeRanges)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result.Success{
		Message: "Workbook metadata for " + md.Filename,
		Payload: md,
	}, nil
}
