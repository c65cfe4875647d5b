package registry

import (
	"context"

	"github.com/vinodismyname/sheetrelay/internal/paths"
	"github.com/vinodismyname/sheetrelay/internal/sheets"
	"github.com/vinodismyname/sheetrelay/pkg/result"
	"github.com/xuri/excelize/v2"
)

type formatInput struct {
	Filepath          string         `json:"filepath" validate:"required,filepath_ext"`
	SheetName         string         `json:"sheet_name" validate:"required,sheetname"`
	StartCell         string         `json:"start_cell" validate:"required,cellref"`
	EndCell           string         `json:"end_cell" validate:"omitempty,cellref,cellafter=StartCell"`
	Bold              bool           `json:"bold"`
	Italic            bool           `json:"italic"`
	Underline         bool           `json:"underline"`
	FontSize          float64        `json:"font_size" validate:"gte=0,lte=409"`
	FontColor         string         `json:"font_color"`
	BgColor           string         `json:"bg_color"`
	BorderStyle       string         `json:"border_style"`
	BorderColor       string         `json:"border_color"`
	NumberFormat      string         `json:"number_format"`
	Alignment         string         `json:"alignment"`
	WrapText          bool           `json:"wrap_text"`
	MergeCells        bool           `json:"merge_cells"`
	Protection        map[string]any `json:"protection"`
	ConditionalFormat map[string]any `json:"conditional_format"`
}

type validationInfoInput struct {
	Filepath  string `json:"filepath" validate:"required"`
	SheetName string `json:"sheet_name" validate:"required,sheetname"`
}

func (e *Env) formatTools() []tool {
	return []tool{
		{
			desc: Descriptor{
				Name:        "format_range",
				Description: "Apply font, fill, border, number format, alignment, protection or conditional formatting to a range.",
				Params: []Param{
					localFileParam(),
					sheetParam(true),
					cellParam("start_cell", "Top-left cell", true),
					cellParam("end_cell", "Bottom-right cell (defaults to start_cell)", false),
					{Name: "bold", Type: Boolean, Default: false, Description: "Bold font"},
					{Name: "italic", Type: Boolean, Default: false, Description: "Italic font"},
					{Name: "underline", Type: Boolean, Default: false, Description: "Underlined font"},
					{Name: "font_size", Type: Number, Description: "Font size in points"},
					{Name: "font_color", Type: String, Description: "Font colour as hex, e.g. FF0000"},
					{Name: "bg_color", Type: String, Description: "Fill colour as hex"},
					{Name: "border_style", Type: String, Description: "thin, medium, thick, dashed, dotted, double, ..."},
					{Name: "border_color", Type: String, Description: "Border colour as hex"},
					{Name: "number_format", Type: String, Description: "Excel number format, e.g. 0.00%"},
					{Name: "alignment", Type: String, Description: "left, center, right, justify, ..."},
					{Name: "wrap_text", Type: Boolean, Default: false, Description: "Wrap text in cells"},
					{Name: "merge_cells", Type: Boolean, Default: false, Description: "Merge the range after styling"},
					{Name: "protection", Type: Object, Description: "Cell protection, e.g. {\"locked\": true, \"hidden\": false}"},
					{Name: "conditional_format", Type: Object, Description: "Conditional format rule, e.g. {\"type\": \"cell\", \"criteria\": \">\", \"value\": 10, \"format\": {\"bg_color\": \"FFC7CE\"}}"},
				},
				Write: true,
			},
			handler: Typed("format_range", []result.Kind{result.Formatting, result.Sheet}, e.formatRange),
		},
		{
			desc: Descriptor{
				Name:        "get_data_validation_info",
				Description: "List the data validation rules (dropdowns, numeric limits, ...) of a worksheet.",
				Params:      []Param{remoteFileParam(), sheetParam(true)},
			},
			handler: Typed("get_data_validation_info", sheetKinds, e.validationInfo),
		},
	}
}

func (e *Env) formatRange(ctx context.Context, in *formatInput) (result.Result, error) {
	span, err := sheets.ParseSpan("start_cell", in.StartCell, "end_cell", in.EndCell)
	if err != nil {
		return nil, err
	}
	opts := sheets.FormatOptions{
		Bold:         in.Bold,
		Italic:       in.Italic,
		Underline:    in.Underline,
		FontSize:     in.FontSize,
		FontColor:    in.FontColor,
		BgColor:      in.BgColor,
		BorderStyle:  in.BorderStyle,
		BorderColor:  in.BorderColor,
		NumberFormat: in.NumberFormat,
		Alignment:    in.Alignment,
		WrapText:     in.WrapText,
		MergeCells:   in.MergeCells,
		Protection:   in.Protection,
		Conditional:  in.ConditionalFormat,
	}
	if _, err := e.write(ctx, in.Filepath, func(f *excelize.File) error {
		return sheets.FormatRange(f, in.SheetName, span, opts)
	}); err != nil {
		return nil, err
	}
	return result.OK("Range formatted successfully"), nil
}

func (e *Env) validationInfo(ctx context.Context, in *validationInfoInput) (result.Result, error) {
	var rules []sheets.ValidationRule
	err := e.read(ctx, in.Filepath, func(f *excelize.File, _ *paths.Ref) error {
		var err error
		rules, err = sheets.DataValidations(f, in.SheetName)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return result.OK("No data validation rules found in this worksheet"), nil
	}
	return result.Success{
		Message: "Found " + plural(len(rules), "data validation rule") + " in " + in.SheetName,
		Payload: map[string]any{"sheet": in.SheetName, "validation_rules": rules},
	}, nil
}
