package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/sheetrelay/internal/docs"
	"github.com/vinodismyname/sheetrelay/internal/fetch"
	"github.com/vinodismyname/sheetrelay/internal/paths"
	"github.com/vinodismyname/sheetrelay/internal/runtime"
	"github.com/vinodismyname/sheetrelay/internal/sheets"
	"github.com/vinodismyname/sheetrelay/internal/upload"
	"github.com/vinodismyname/sheetrelay/internal/workbooks"
	"github.com/vinodismyname/sheetrelay/pkg/result"
)

type fixture struct {
	reg     *Registry
	env     *Env
	dir     string
	tempDir string
}

func newFixture(t *testing.T, up upload.Uploader) *fixture {
	t.Helper()
	dir, tmp := t.TempDir(), t.TempDir()
	guard, err := paths.NewGuard(nil)
	require.NoError(t, err)
	f := fetch.New(fetch.Options{TempDir: tmp})
	env := &Env{
		Resolver:  paths.NewResolver(dir),
		Guard:     guard,
		Fetcher:   f,
		Books:     workbooks.NewManager(nil),
		Uploader:  up,
		Extractor: docs.NewExtractor(f),
		Limits:    runtime.NewLimits(0, 0),
	}
	r := New()
	require.NoError(t, RegisterAll(r, env))
	return &fixture{reg: r, env: env, dir: dir, tempDir: tmp}
}

func (fx *fixture) invoke(t *testing.T, name string, args map[string]any) (result.Result, error) {
	t.Helper()
	return fx.reg.Invoke(context.Background(), name, args)
}

func requireFailure(t *testing.T, res result.Result, err error, kind result.Kind) result.Failure {
	t.Helper()
	require.NoError(t, err)
	f, ok := res.(result.Failure)
	require.True(t, ok, "expected failure, got %#v", res)
	require.Equal(t, kind, f.Kind, f.Message)
	return f
}

func requireSuccess(t *testing.T, res result.Result, err error) result.Success {
	t.Helper()
	require.NoError(t, err)
	s, ok := res.(result.Success)
	require.True(t, ok, "expected success, got %#v", res)
	return s
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestInvoke_UnknownOperation(t *testing.T) {
	fx := newFixture(t, upload.Nop{})
	res, err := fx.invoke(t, "drop_database", map[string]any{"filepath": "book.xlsx"})
	f := requireFailure(t, res, err, result.UnknownOperation)
	require.Contains(t, f.Message, "drop_database")
	require.Empty(t, dirEntries(t, fx.dir))
	require.Empty(t, dirEntries(t, fx.tempDir))
}

func TestRegister_Rejects(t *testing.T) {
	r := New()
	noop := func(context.Context, map[string]any) (result.Result, error) { return result.OK("ok"), nil }

	require.NoError(t, r.Register(Descriptor{Name: "a"}, noop))
	require.Error(t, r.Register(Descriptor{Name: "a"}, noop))
	require.Error(t, r.Register(Descriptor{Name: ""}, noop))
	require.Error(t, r.Register(Descriptor{Name: "b"}, nil))
	require.Error(t, r.Register(Descriptor{Name: "c", Params: []Param{
		{Name: "x", Type: String, Required: true, Default: "y"},
	}}, noop))
	require.Error(t, r.Register(Descriptor{Name: "d", Params: []Param{
		{Name: "x", Type: String}, {Name: "x", Type: Integer},
	}}, noop))
}

func TestInvoke_NormalizesArguments(t *testing.T) {
	r := New()
	var got map[string]any
	require.NoError(t, r.Register(Descriptor{
		Name: "echo",
		Params: []Param{
			{Name: "n", Type: Integer, Required: true},
			{Name: "flag", Type: Boolean, Default: false},
			{Name: "mode", Type: String, Default: "up", Enum: []string{"up", "left"}},
			{Name: "names", Type: StringList},
			{Name: "size", Type: Number},
		},
	}, func(_ context.Context, args map[string]any) (result.Result, error) {
		got = args
		return result.OK("ok"), nil
	}))
	ctx := context.Background()

	_, err := r.Invoke(ctx, "echo", map[string]any{"n": "3", "flag": "True", "mode": "LEFT", "names": "Region", "size": "10.5", "extra": 1})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"n": 3, "flag": true, "mode": "left", "names": []string{"Region"}, "size": 10.5}, got)

	_, err = r.Invoke(ctx, "echo", map[string]any{"n": float64(7)})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"n": 7, "flag": false, "mode": "up"}, got)

	cases := map[string]map[string]any{
		"n is required":          {},
		"n must be an integer":   {"n": 2.5},
		"flag must be a boolean": {"n": 1, "flag": "maybe"},
		"mode must be one of":    {"n": 1, "mode": "down"},
		"size must be a number":  {"n": 1, "size": "big"},
		"names must be a list":   {"n": 1, "names": map[string]any{"a": 1}},
	}
	for want, args := range cases {
		res, err := r.Invoke(ctx, "echo", args)
		f := requireFailure(t, res, err, result.Validation)
		require.Contains(t, f.Message, want)
	}
}

func TestCoerceRows(t *testing.T) {
	rows, err := coerceRows([]any{[]any{"a", 1.0, true, nil}, []any{}})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	_, err = coerceRows([]any{"not a row"})
	require.ErrorContains(t, err, "row 1")
	_, err = coerceRows([]any{[]any{map[string]any{"x": 1}}})
	require.ErrorContains(t, err, "row 1 column 1")
	_, err = coerceRows("flat")
	require.Error(t, err)
}

func TestTools_Catalog(t *testing.T) {
	fx := newFixture(t, upload.Nop{})
	tools, err := fx.reg.Tools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 22)
	for i := 1; i < len(tools); i++ {
		require.Less(t, tools[i-1].Name, tools[i].Name)
	}

	readOnly := map[string]bool{
		"read_data_from_excel": true, "get_workbook_metadata": true, "get_merged_cells": true,
		"validate_excel_range": true, "get_data_validation_info": true, "validate_formula_syntax": true,
	}
	for _, tool := range tools {
		require.NotNil(t, tool.Annotations.ReadOnlyHint, tool.Name)
		require.Equal(t, readOnly[tool.Name], *tool.Annotations.ReadOnlyHint, tool.Name)
		require.Contains(t, tool.InputSchema.Properties, firstParam(tool.Name), tool.Name)
	}

	d, ok := fx.reg.Get("read_data_from_excel")
	require.True(t, ok)
	require.False(t, d.Write)
}

func firstParam(tool string) string {
	if tool == "extract_document_tables" {
		return "url"
	}
	return "filepath"
}

func TestWriteToolFilter(t *testing.T) {
	fx := newFixture(t, upload.Nop{})
	tools, err := fx.reg.Tools(context.Background())
	require.NoError(t, err)

	ro := NewWriteToolFilter(fx.reg, false)
	visible := ro.FilterTools(context.Background(), tools)
	require.Len(t, visible, 6)
	require.False(t, ro.Allowed("write_data_to_excel"))
	require.True(t, ro.Allowed("read_data_from_excel"))

	rw := NewWriteToolFilter(fx.reg, true)
	require.Len(t, rw.FilterTools(context.Background(), tools), 22)
	require.True(t, rw.Allowed("delete_worksheet"))
}

type echoInput struct {
	Filepath string `json:"filepath" validate:"required"`
}

func TestTyped_ErrorMapping(t *testing.T) {
	ctx := context.Background()
	run := func(err error) Handler {
		return Typed("echo", []result.Kind{result.Sheet}, func(context.Context, *echoInput) (result.Result, error) {
			return nil, err
		})
	}
	args := map[string]any{"filepath": "book.xlsx"}

	res, err := run(&sheets.SheetError{Operation: "rename", SheetName: "A", Cause: errors.New("exists")})(ctx, args)
	requireFailure(t, res, err, result.Sheet)

	res, err = run(&fetch.Error{URL: "ftp://x", Reason: "scheme"})(ctx, args)
	requireFailure(t, res, err, result.Fetch)

	res, err = run(&sheets.ChartError{Operation: "create", Cause: errors.New("bad")})(ctx, args)
	require.Error(t, err)
	require.Nil(t, res)

	boom := errors.New("boom")
	res, err = run(boom)(ctx, args)
	require.ErrorIs(t, err, boom)
	require.Nil(t, res)

	res, err = run(nil)(ctx, map[string]any{})
	f := requireFailure(t, res, err, result.Validation)
	require.Contains(t, f.Message, "filepath")
}

func TestTyped_DecodeErrors(t *testing.T) {
	type sized struct {
		Filepath string `json:"filepath" validate:"required"`
		Size     int    `json:"size"`
	}
	var called bool
	h := Typed("echo", nil, func(context.Context, *sized) (result.Result, error) {
		called = true
		return result.OK("ok"), nil
	})

	res, err := h(context.Background(), map[string]any{"filepath": "book.xlsx", "size": "large"})
	f := requireFailure(t, res, err, result.Validation)
	require.Equal(t, "size has the wrong type", f.Message)

	res, err = h(context.Background(), map[string]any{"filepath": "book.xlsx", "bad": make(chan int)})
	f = requireFailure(t, res, err, result.Validation)
	require.Equal(t, "input is invalid", f.Message)
	require.False(t, called)

	res, err = h(context.Background(), map[string]any{"filepath": "book.xlsx", "size": 3})
	require.NoError(t, err)
	require.NotNil(t, res)
	require.True(t, called)
}

func TestTyped_ReleasesTempOnUnclassifiedError(t *testing.T) {
	fx := newFixture(t, upload.Nop{})
	srv := serveWorkbook(t, nil)

	h := Typed("echo", nil, func(ctx context.Context, in *echoInput) (result.Result, error) {
		ref, err := fx.env.Acquire(ctx, "filepath", in.Filepath)
		if err != nil {
			return nil, err
		}
		defer release(ctx, ref)
		require.FileExists(t, ref.Local)
		require.Equal(t, fx.tempDir, filepath.Dir(ref.Local))
		return nil, errors.New("delegate crashed")
	})
	_, err := h(context.Background(), map[string]any{"filepath": srv.URL + "/book.xlsx"})
	require.EqualError(t, err, "delegate crashed")
	require.Empty(t, dirEntries(t, fx.tempDir))
}
