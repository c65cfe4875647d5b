package registry

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/vinodismyname/sheetrelay/internal/paths"
	"github.com/vinodismyname/sheetrelay/internal/sheets"
	"github.com/vinodismyname/sheetrelay/pkg/pagination"
	"github.com/vinodismyname/sheetrelay/pkg/result"
	"github.com/vinodismyname/sheetrelay/pkg/validation"
	"github.com/xuri/excelize/v2"
)

// previewRows caps a page when preview_only is set.
const previewRows = 10

type readInput struct {
	Filepath    string `json:"filepath" validate:"required"`
	SheetName   string `json:"sheet_name" validate:"omitempty,sheetname"`
	StartCell   string `json:"start_cell" validate:"required,cellref"`
	EndCell     string `json:"end_cell" validate:"omitempty,cellref,cellafter=StartCell"`
	PreviewOnly bool   `json:"preview_only"`
	MaxRows     int    `json:"max_rows" validate:"gte=0"`
	Cursor      string `json:"cursor" validate:"omitempty,cursor"`
}

type writeInput struct {
	Filepath  string  `json:"filepath" validate:"required,filepath_ext"`
	SheetName string  `json:"sheet_name" validate:"omitempty,sheetname"`
	Data      [][]any `json:"data" validate:"required,min=1"`
	StartCell string  `json:"start_cell" validate:"required,cellref"`
}

// PageInfo locates a read page within its range.
type PageInfo struct {
	Offset     int    `json:"offset"`
	Returned   int    `json:"returned"`
	TotalRows  int    `json:"total_rows"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// ReadPayload is the read_data_from_excel response body.
type ReadPayload struct {
	Sheet string             `json:"sheet"`
	Range string             `json:"range"`
	Cells []sheets.CellValue `json:"cells"`
	Page  PageInfo           `json:"page"`
}

func (e *Env) dataTools() []tool {
	return []tool{
		{
			desc: Descriptor{
				Name: "read_data_from_excel",
				Description: "Read cell values from a workbook path or URL, one page of rows at a time. " +
					"Pass page.next_cursor back as cursor to continue.",
				Params: []Param{
					remoteFileParam(),
					sheetParam(false),
					{Name: "start_cell", Type: String, Default: "A1", Description: "Top-left cell"},
					cellParam("end_cell", "Bottom-right cell (defaults to the end of the used area)", false),
					{Name: "preview_only", Type: Boolean, Default: false, Description: "Return a short preview without validation metadata"},
					{Name: "max_rows", Type: Integer, Description: "Rows per page (default 100, capped at 1000)"},
					{Name: "cursor", Type: String, Description: "Continuation token from a previous page"},
				},
			},
			handler: Typed("read_data_from_excel", []result.Kind{result.Workbook, result.Sheet, result.Data}, e.readData),
		},
		{
			desc: Descriptor{
				Name: "write_data_to_excel",
				Description: "Write rows of values to a worksheet, creating the workbook and sheet when missing. " +
					"Strings starting with '=' are stored as formulas. The saved workbook is uploaded and its download URL returned.",
				Params: []Param{
					localFileParam(),
					sheetParam(false),
					{Name: "data", Type: Rows, Required: true, Description: "Rows of values, e.g. [[\"Name\", \"Qty\"], [\"Apples\", 3]]"},
					{Name: "start_cell", Type: String, Default: "A1", Description: "Top-left cell to write to"},
				},
				Write: true,
			},
			handler: Typed("write_data_to_excel", []result.Kind{result.Data, result.Workbook, result.Sheet, result.Upload}, e.writeData),
		},
	}
}

func spanKey(start, end string) string {
	k := strings.ToUpper(strings.TrimSpace(start))
	if end = strings.TrimSpace(end); end != "" {
		k += ":" + strings.ToUpper(end)
	}
	return k
}

func (e *Env) readData(ctx context.Context, in *readInput) (result.Result, error) {
	var cur *pagination.Token
	if in.Cursor != "" {
		t, err := pagination.Parse(in.Cursor)
		if err != nil {
			return nil, &validation.Error{Field: "cursor", Message: "is not a valid cursor; restart pagination without it"}
		}
		cur = &t
	}
	pageSize := e.Limits.PageRows(in.MaxRows)
	if in.PreviewOnly {
		pageSize = min(pageSize, previewRows)
	}
	key := spanKey(in.StartCell, in.EndCell)

	var page *sheets.ReadPage
	err := e.read(ctx, in.Filepath, func(f *excelize.File, _ *paths.Ref) error {
		sheet := in.SheetName
		if sheet == "" {
			if list := f.GetSheetList(); len(list) > 0 {
				sheet = list[0]
			}
		}
		offset := 0
		if cur != nil {
			want := 0
			if in.MaxRows > 0 {
				want = pageSize
			}
			if !cur.Resumes(in.Filepath, sheet, key, want) {
				return &validation.Error{Field: "cursor", Message: "was issued for a different file, sheet, range or page size"}
			}
			offset, pageSize = cur.Offset, cur.Size
		}
		var err error
		page, err = sheets.ReadRange(f, sheets.ReadRequest{
			Sheet:          sheet,
			StartCell:      in.StartCell,
			EndCell:        in.EndCell,
			Offset:         offset,
			Limit:          pageSize,
			WithValidation: !in.PreviewOnly,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if page.Empty {
		return result.OK("No data found in specified range"), nil
	}

	info := PageInfo{Offset: page.Offset, Returned: page.Returned, TotalRows: page.TotalRows}
	if next, ok := pagination.Next(page.Offset, page.Returned, page.TotalRows); ok {
		token, err := pagination.Issue(in.Filepath, page.Sheet, key, next, pageSize).Encode()
		if err != nil {
			return nil, err
		}
		info.NextCursor = token
	}
	zerolog.Ctx(ctx).Debug().Str("sheet", page.Sheet).Int("offset", page.Offset).Int("returned", page.Returned).Msg("range page read")
	return result.Success{
		Message: "Read " + plural(page.Returned, "row") + " from " + page.Sheet + "!" + page.Range,
		Payload: ReadPayload{Sheet: page.Sheet, Range: page.Range, Cells: page.Cells, Page: info},
	}, nil
}

func (e *Env) writeData(ctx context.Context, in *writeInput) (result.Result, error) {
	p, err := e.Target("filepath", in.Filepath)
	if err != nil {
		return nil, err
	}
	var (
		sheet   string
		written sheets.Range
	)
	err = e.Books.WithWrite(ctx, p, true, func(f *excelize.File) error {
		var err error
		if sheet, _, err = sheets.EnsureSheet(f, in.SheetName); err != nil {
			return err
		}
		written, err = sheets.WriteRows(f, sheet, in.StartCell, in.Data)
		return err
	})
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().Str("sheet", sheet).Str("range", written.String()).Msg("data written")

	var suffix string
	err = e.Books.Hold(ctx, p, false, func() error {
		var err error
		suffix, _, err = e.publish(ctx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result.OK("Data written to %s%s", sheet, suffix), nil
}
