package registry

import (
	"context"

	"github.com/vinodismyname/sheetrelay/internal/docs"
	"github.com/vinodismyname/sheetrelay/pkg/result"
)

type extractInput struct {
	URL            string `json:"url" validate:"required,httpurl"`
	OutputFilename string `json:"output_filename" validate:"omitempty,filepath_ext"`
}

func (e *Env) documentTools() []tool {
	return []tool{
		{
			desc: Descriptor{
				Name: "extract_document_tables",
				Description: "Download a pptx, docx or pdf document, extract every table into its own sheet " +
					"(Table_1, Table_2, ...) of a new workbook and upload it.",
				Params: []Param{
					{Name: "url", Type: String, Required: true, Description: "http(s) URL of the document"},
					{Name: "output_filename", Type: String, Description: "Workbook to write (defaults to <document>_extracted_tables.xlsx)"},
				},
				Write: true,
			},
			handler: Typed("extract_document_tables", []result.Kind{result.Data, result.Upload}, e.extractTables),
		},
	}
}

func (e *Env) extractTables(ctx context.Context, in *extractInput) (result.Result, error) {
	name := in.OutputFilename
	if name == "" {
		name = docs.DefaultOutputName(in.URL)
	}
	out, err := e.Target("output_filename", name)
	if err != nil {
		return nil, err
	}

	var rep *docs.Report
	err = e.Books.Hold(ctx, out, true, func() error {
		var err error
		rep, err = e.Extractor.Extract(ctx, in.URL, out)
		return err
	})
	if err != nil {
		return nil, err
	}

	var suffix string
	err = e.Books.Hold(ctx, out, false, func() error {
		var err error
		suffix, rep.DownloadURL, err = e.publish(ctx, out)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result.Success{
		Message: "Extracted " + plural(rep.TotalTables, "table") + " to " + out + suffix,
		Payload: rep,
	}, nil
}
