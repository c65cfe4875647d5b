package sheets

import (
	"errors"
	"fmt"

	"github.com/vinodismyname/sheetrelay/pkg/result"
	"github.com/xuri/excelize/v2"
)

// WorkbookError reports a failure to open, create, or save a workbook.
type WorkbookError struct {
	Operation string
	Path      string
	Cause     error
}

func (e *WorkbookError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("workbook %s failed for '%s': %v", e.Operation, e.Path, e.Cause)
	}
	return fmt.Sprintf("workbook %s failed: %v", e.Operation, e.Cause)
}

func (e *WorkbookError) Unwrap() error     { return e.Cause }
func (e *WorkbookError) Kind() result.Kind { return result.Workbook }

// SheetError reports a worksheet level failure (missing, duplicate, last sheet).
type SheetError struct {
	Operation string
	SheetName string
	Cause     error
}

func (e *SheetError) Error() string {
	return fmt.Sprintf("sheet %s failed for '%s': %v", e.Operation, e.SheetName, e.Cause)
}

func (e *SheetError) Unwrap() error     { return e.Cause }
func (e *SheetError) Kind() result.Kind { return result.Sheet }

// DataError reports a failure reading or writing cell data.
type DataError struct {
	Operation string
	Location  string
	Cause     error
}

func (e *DataError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("data %s failed at %s: %v", e.Operation, e.Location, e.Cause)
	}
	return fmt.Sprintf("data %s failed: %v", e.Operation, e.Cause)
}

func (e *DataError) Unwrap() error     { return e.Cause }
func (e *DataError) Kind() result.Kind { return result.Data }

// ValidationError names the offending input field.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func (e *ValidationError) Kind() result.Kind { return result.Validation }

// FormattingError reports a style or conditional format failure.
type FormattingError struct {
	Operation string
	Range     string
	Cause     error
}

func (e *FormattingError) Error() string {
	return fmt.Sprintf("formatting %s failed for %s: %v", e.Operation, e.Range, e.Cause)
}

func (e *FormattingError) Unwrap() error     { return e.Cause }
func (e *FormattingError) Kind() result.Kind { return result.Formatting }

// CalculationError reports a formula that could not be applied or evaluated.
type CalculationError struct {
	Cell    string
	Formula string
	Cause   error
}

func (e *CalculationError) Error() string {
	return fmt.Sprintf("formula '%s' at %s: %v", e.Formula, e.Cell, e.Cause)
}

func (e *CalculationError) Unwrap() error     { return e.Cause }
func (e *CalculationError) Kind() result.Kind { return result.Calculation }

// PivotError reports a pivot table construction failure.
type PivotError struct {
	Operation string
	Cause     error
}

func (e *PivotError) Error() string {
	return fmt.Sprintf("pivot %s failed: %v", e.Operation, e.Cause)
}

func (e *PivotError) Unwrap() error     { return e.Cause }
func (e *PivotError) Kind() result.Kind { return result.Pivot }

// ChartError reports a chart construction failure.
type ChartError struct {
	Operation string
	ChartType string
	Cause     error
}

func (e *ChartError) Error() string {
	return fmt.Sprintf("%s chart %s failed: %v", e.ChartType, e.Operation, e.Cause)
}

func (e *ChartError) Unwrap() error     { return e.Cause }
func (e *ChartError) Kind() result.Kind { return result.Chart }

var (
	errSheetExists   = errors.New("worksheet already exists")
	errSheetNotFound = errors.New("worksheet not found")
	errLastSheet     = errors.New("cannot delete the only worksheet")
)

// invalid is shorthand for a ValidationError.
func invalid(field string, value any, format string, args ...any) error {
	return &ValidationError{Field: field, Value: value, Message: fmt.Sprintf(format, args...)}
}

// sheetIndex returns the sheet's index or a SheetError when it is missing.
func sheetIndex(f *excelize.File, op, name string) (int, error) {
	idx, err := f.GetSheetIndex(name)
	if err != nil {
		return -1, &SheetError{Operation: op, SheetName: name, Cause: err}
	}
	if idx < 0 {
		return -1, &SheetError{Operation: op, SheetName: name, Cause: errSheetNotFound}
	}
	return idx, nil
}

// classifySheetErr maps excelize's missing sheet error onto SheetError and leaves
// other errors to the caller's wrapping.
func classifySheetErr(op, sheet string, err error) (error, bool) {
	var missing excelize.ErrSheetNotExist
	if errors.As(err, &missing) {
		return &SheetError{Operation: op, SheetName: sheet, Cause: errSheetNotFound}, true
	}
	return err, false
}
