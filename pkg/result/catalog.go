package result

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind names a failure category surfaced to MCP clients.
type Kind string

const (
	// Input
	Validation       Kind = "ValidationError"
	UnknownOperation Kind = "UnknownOperationError"

	// Delegates
	Workbook    Kind = "WorkbookError"
	Sheet       Kind = "SheetError"
	Data        Kind = "DataError"
	Formatting  Kind = "FormattingError"
	Calculation Kind = "CalculationError"
	Pivot       Kind = "PivotError"
	Chart       Kind = "ChartError"

	// Transfer
	Fetch  Kind = "FetchError"
	Upload Kind = "UploadError"

	// Runtime
	BusyResource Kind = "BusyResource"
	Timeout      Kind = "Timeout"

	Unclassified Kind = "Unclassified"
)

// Entry documents a kind's standard message, retry semantics, and next steps.
type Entry struct {
	Kind      Kind
	Message   string
	Retryable bool
	NextSteps []string
}

var catalog = map[Kind]Entry{
	Validation:       {Kind: Validation, Message: "invalid inputs", Retryable: true, NextSteps: []string{"Correct the inputs per schema and retry"}},
	UnknownOperation: {Kind: UnknownOperation, Message: "unknown operation", Retryable: false, NextSteps: []string{"List tools to see registered operation names"}},

	Workbook:    {Kind: Workbook, Message: "workbook operation failed", Retryable: false, NextSteps: []string{"Verify path, permissions, and format"}},
	Sheet:       {Kind: Sheet, Message: "worksheet operation failed", Retryable: true, NextSteps: []string{"Call get_workbook_metadata to verify sheet names", "Check case and spacing"}},
	Data:        {Kind: Data, Message: "data operation failed", Retryable: true, NextSteps: []string{"Verify range and values"}},
	Formatting:  {Kind: Formatting, Message: "formatting failed", Retryable: true, NextSteps: []string{"Check colours (hex), border and alignment names"}},
	Calculation: {Kind: Calculation, Message: "formula could not be applied", Retryable: false, NextSteps: []string{"Call validate_formula_syntax first"}},
	Pivot:       {Kind: Pivot, Message: "pivot table creation failed", Retryable: true, NextSteps: []string{"Use header names from the first row of data_range"}},
	Chart:       {Kind: Chart, Message: "chart creation failed", Retryable: true, NextSteps: []string{"Use line, bar, column, pie, scatter, or area"}},

	Fetch:  {Kind: Fetch, Message: "download failed", Retryable: true, NextSteps: []string{"Verify the URL is reachable over http(s) and serves the expected file"}},
	Upload: {Kind: Upload, Message: "upload failed", Retryable: true, NextSteps: []string{"Retry later or check upload configuration"}},

	BusyResource: {Kind: BusyResource, Message: "concurrent request limit reached", Retryable: true, NextSteps: []string{"Retry after a short delay"}},
	Timeout:      {Kind: Timeout, Message: "operation exceeded configured time limit", Retryable: true, NextSteps: []string{"Narrow scope or use smaller pages"}},
}

// Lookup returns the catalog entry for kind, or a bare entry for unknown kinds.
func Lookup(kind Kind) Entry {
	if e, ok := catalog[kind]; ok {
		return e
	}
	return Entry{Kind: kind, Message: "operation failed"}
}

// normalize builds "Kind: message" followed by a compact guidance tail for clients
// that surface only a message string.
func normalize(kind Kind, msg string) string {
	e := Lookup(kind)
	base := strings.TrimSpace(msg)
	if base == "" {
		base = e.Message
	}
	guidance := ""
	if len(e.NextSteps) > 0 {
		guidance = " | nextSteps: " + strings.Join(e.NextSteps, "; ")
	}
	return fmt.Sprintf("%s: %s%s", e.Kind, base, guidance)
}

func marshalPayload(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
