package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/sheetrelay/pkg/pagination"
	"github.com/vinodismyname/sheetrelay/pkg/result"
)

type rangeInput struct {
	Sheet     string `json:"sheet_name" validate:"required,sheetname"`
	StartCell string `json:"start_cell" validate:"required,cellref"`
	EndCell   string `json:"end_cell" validate:"omitempty,cellref,cellafter=StartCell"`
}

type refInput struct {
	Path   string `json:"filepath" validate:"required,filepath_ext"`
	Range  string `json:"data_range" validate:"required,a1range"`
	URL    string `json:"url" validate:"omitempty,httpurl"`
	Cursor string `json:"cursor" validate:"omitempty,cursor"`
}

func fieldOf(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	var ve *Error
	require.True(t, errors.As(err, &ve))
	kind, ok := result.Classify(err)
	require.True(t, ok)
	require.Equal(t, result.Validation, kind)
	return ve.Field
}

func TestValidateStruct_Ranges(t *testing.T) {
	require.NoError(t, ValidateStruct(rangeInput{Sheet: "Data", StartCell: "A1", EndCell: "$C$3"}))
	require.NoError(t, ValidateStruct(rangeInput{Sheet: "Data", StartCell: "B2"}))

	err := ValidateStruct(rangeInput{Sheet: "Data", StartCell: "C3", EndCell: "A1"})
	require.Equal(t, "end_cell", fieldOf(t, err))
	require.Contains(t, err.Error(), "must not precede start_cell")

	require.Equal(t, "start_cell", fieldOf(t, ValidateStruct(rangeInput{Sheet: "Data", StartCell: "A0"})))
	require.Equal(t, "sheet_name", fieldOf(t, ValidateStruct(rangeInput{StartCell: "A1"})))
	require.Equal(t, "sheet_name", fieldOf(t, ValidateStruct(rangeInput{Sheet: "a[b]", StartCell: "A1"})))
}

func TestValidateStruct_Refs(t *testing.T) {
	tok, err := pagination.Issue("a.xlsx", "S", "A1:B2", 0, 10).Encode()
	require.NoError(t, err)
	require.NoError(t, ValidateStruct(refInput{Path: "a.xlsx", Range: "Sheet1!A1:B5", URL: "https://example.com/a.xlsx", Cursor: tok}))

	require.Equal(t, "filepath", fieldOf(t, ValidateStruct(refInput{Path: "a.csv", Range: "A1"})))
	require.Equal(t, "data_range", fieldOf(t, ValidateStruct(refInput{Path: "a.xlsx", Range: "B5:A1"})))
	require.Equal(t, "url", fieldOf(t, ValidateStruct(refInput{Path: "a.xlsx", Range: "A1", URL: "ftp://example.com/a.xlsx"})))
	require.Equal(t, "cursor", fieldOf(t, ValidateStruct(refInput{Path: "a.xlsx", Range: "A1", Cursor: "!!"})))
}
