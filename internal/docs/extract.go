package docs

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/vinodismyname/sheetrelay/internal/fetch"
	"github.com/vinodismyname/sheetrelay/internal/paths"
	"github.com/vinodismyname/sheetrelay/internal/sheets"
	"github.com/vinodismyname/sheetrelay/pkg/result"
	"github.com/xuri/excelize/v2"
)

// ErrNoTables is reported when a document parses but contains no tables.
var ErrNoTables = errors.New("no tables found in document")

// Error reports a document that could not be turned into tables.
type Error struct {
	Op     string
	Source string
	Cause  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Source, e.Cause)
}

func (e *Error) Unwrap() error     { return e.Cause }
func (e *Error) Kind() result.Kind { return result.Data }

// SheetSummary describes one sheet written by Save.
type SheetSummary struct {
	SheetName string `json:"sheet_name"`
	Source    string `json:"source"`
	Rows      int    `json:"rows"`
	Columns   int    `json:"columns"`
}

// Report is the extract_document_tables payload.
type Report struct {
	TotalTables int            `json:"total_tables"`
	OutputFile  string         `json:"output_file"`
	Tables      []SheetSummary `json:"tables"`
	DownloadURL string         `json:"download_url,omitempty"`
}

// Extractor downloads documents and converts their tables into a workbook.
type Extractor struct {
	fetcher *fetch.Fetcher
}

// NewExtractor builds an Extractor that downloads through f.
func NewExtractor(f *fetch.Fetcher) *Extractor {
	return &Extractor{fetcher: f}
}

// Extract fetches rawURL, lifts every table and writes them to outPath as
// Table_1..N sheets. The downloaded document is removed before returning.
func (e *Extractor) Extract(ctx context.Context, rawURL, outPath string) (*Report, error) {
	local, err := e.fetcher.Fetch(ctx, rawURL, fetch.DocumentFormat)
	if err != nil {
		return nil, err
	}
	ref := paths.Temp(rawURL, local)
	defer func() {
		if err := ref.Release(); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("path", local).Msg("remove downloaded document")
		}
	}()

	tables, err := ExtractFile(local)
	if err != nil {
		var ve *sheets.ValidationError
		if errors.As(err, &ve) {
			ve.Field, ve.Value = "url", rawURL
			return nil, ve
		}
		return nil, &Error{Op: "extract", Source: rawURL, Cause: err}
	}
	if len(tables) == 0 {
		return nil, &Error{Op: "extract", Source: rawURL, Cause: ErrNoTables}
	}
	zerolog.Ctx(ctx).Debug().Int("tables", len(tables)).Str("url", rawURL).Msg("document tables extracted")

	summaries, err := Save(tables, outPath)
	if err != nil {
		return nil, err
	}
	return &Report{TotalTables: len(tables), OutputFile: outPath, Tables: summaries}, nil
}

// ExtractFile dispatches on the file extension.
func ExtractFile(file string) ([]Table, error) {
	switch ext := strings.ToLower(filepath.Ext(file)); ext {
	case ".pptx":
		return extractPPTX(file)
	case ".docx":
		return extractDOCX(file)
	case ".pdf":
		return extractPDF(file)
	default:
		return nil, &sheets.ValidationError{Field: "file", Value: file,
			Message: fmt.Sprintf("has unsupported document type %q (expected pptx, docx or pdf)", ext)}
	}
}

// Save writes one sheet per table to a new workbook at outPath. Cell text is
// stored verbatim, never as formulas.
func Save(tables []Table, outPath string) ([]SheetSummary, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	summaries := make([]SheetSummary, 0, len(tables))
	for i, t := range tables {
		name := fmt.Sprintf("Table_%d", i+1)
		var err error
		if i == 0 {
			err = f.SetSheetName(sheets.DefaultSheet, name)
		} else {
			_, err = f.NewSheet(name)
		}
		if err != nil {
			return nil, &sheets.WorkbookError{Operation: "add sheet", Path: outPath, Cause: err}
		}
		for r, row := range t.Rows {
			vals := make([]any, len(row))
			for c, v := range row {
				vals[c] = v
			}
			cell, _ := excelize.CoordinatesToCellName(1, r+1)
			if err := f.SetSheetRow(name, cell, &vals); err != nil {
				return nil, &sheets.DataError{Operation: "write", Location: name + "!" + cell, Cause: err}
			}
		}
		summaries = append(summaries, SheetSummary{SheetName: name, Source: t.Source, Rows: len(t.Rows), Columns: t.Columns()})
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, &sheets.WorkbookError{Operation: "save", Path: outPath, Cause: err}
	}
	if err := sheets.Save(f, outPath); err != nil {
		return nil, &sheets.WorkbookError{Operation: "save", Path: outPath, Cause: err}
	}
	return summaries, nil
}

// DefaultOutputName derives "<name>_extracted_tables.xlsx" from the URL path.
func DefaultOutputName(rawURL string) string {
	base := "document"
	if u, err := url.Parse(rawURL); err == nil {
		if b := strings.TrimSuffix(path.Base(u.Path), path.Ext(u.Path)); b != "" && b != "." && b != "/" && len(b) <= 100 {
			base = b
		}
	}
	return base + "_extracted_tables.xlsx"
}
