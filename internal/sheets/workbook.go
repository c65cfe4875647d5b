package sheets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// DefaultSheet is the sheet name excelize gives new workbooks.
const DefaultSheet = "Sheet1"

var errWorkbookExists = errors.New("file already exists")

// CreateWorkbook writes a new single-sheet workbook at path. It refuses to
// overwrite an existing file.
func CreateWorkbook(path string) error {
	if _, err := os.Stat(path); err == nil {
		return &WorkbookError{Operation: "create", Path: path, Cause: errWorkbookExists}
	}
	return createWorkbook(path)
}

// EnsureWorkbook creates the workbook at path if it does not exist yet and
// reports whether it did.
func EnsureWorkbook(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, &WorkbookError{Operation: "stat", Path: path, Cause: err}
	}
	return true, createWorkbook(path)
}

func createWorkbook(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &WorkbookError{Operation: "create", Path: path, Cause: err}
	}
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := Save(f, path); err != nil {
		return &WorkbookError{Operation: "create", Path: path, Cause: err}
	}
	return nil
}

// Save recalculates linked values and writes the workbook to path with
// owner-only permissions.
func Save(f *excelize.File, path string) error {
	if err := f.UpdateLinkedValue(); err != nil {
		return fmt.Errorf("update linked values: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return err
	}
	return os.Chmod(path, 0o600)
}

// SheetInfo describes one worksheet in workbook metadata.
type SheetInfo struct {
	Name      string   `json:"name"`
	Index     int      `json:"index"`
	Dimension string   `json:"dimension,omitempty"`
	Rows      int      `json:"rows,omitempty"`
	Columns   int      `json:"columns,omitempty"`
	Tables    []string `json:"tables,omitempty"`
	Merged    []string `json:"merged,omitempty"`
}

// Metadata is the get_workbook_metadata payload.
type Metadata struct {
	Filename   string      `json:"filename"`
	SizeBytes  int64       `json:"size_bytes"`
	SheetCount int         `json:"sheet_count"`
	Active     string      `json:"active_sheet"`
	Sheets     []SheetInfo `json:"sheets"`
}

// ReadMetadata summarizes the workbook. Used ranges, tables and merged ranges are
// only collected when includeRanges is set.
func ReadMetadata(f *excelize.File, path, displayName string, includeRanges bool) (*Metadata, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, &WorkbookError{Operation: "metadata", Path: displayName, Cause: err}
	}
	names := f.GetSheetList()
	md := &Metadata{
		Filename:   displayName,
		SizeBytes:  fi.Size(),
		SheetCount: len(names),
		Active:     f.GetSheetName(f.GetActiveSheetIndex()),
		Sheets:     make([]SheetInfo, 0, len(names)),
	}
	for i, name := range names {
		info := SheetInfo{Name: name, Index: i}
		if includeRanges {
			if err := describeSheet(f, &info); err != nil {
				return nil, &WorkbookError{Operation: "metadata", Path: displayName, Cause: err}
			}
		}
		md.Sheets = append(md.Sheets, info)
	}
	return md, nil
}

func describeSheet(f *excelize.File, info *SheetInfo) error {
	rows, cols, err := Extent(f, info.Name)
	if err != nil {
		return err
	}
	if rows > 0 && cols > 0 {
		info.Rows, info.Columns = rows, cols
		info.Dimension = Range{StartCol: 1, StartRow: 1, EndCol: cols, EndRow: rows}.String()
	}
	tables, err := f.GetTables(info.Name)
	if err != nil {
		return err
	}
	for _, t := range tables {
		info.Tables = append(info.Tables, fmt.Sprintf("%s (%s)", t.Name, t.Range))
	}
	merged, err := f.GetMergeCells(info.Name)
	if err != nil {
		return err
	}
	for _, m := range merged {
		info.Merged = append(info.Merged, m.GetStartAxis()+":"+m.GetEndAxis())
	}
	return nil
}

// Extent returns the number of used rows and the widest used column count.
func Extent(f *excelize.File, sheet string) (int, int, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		if mapped, ok := classifySheetErr("read", sheet, err); ok {
			return 0, 0, mapped
		}
		return 0, 0, err
	}
	cols := 0
	for _, r := range rows {
		if len(r) > cols {
			cols = len(r)
		}
	}
	return len(rows), cols, nil
}
