package registry

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"

	"github.com/vinodismyname/sheetrelay/internal/paths"
	"github.com/xuri/excelize/v2"
)

// tool pairs a descriptor with its bound handler.
type tool struct {
	desc    Descriptor
	handler Handler
}

// RegisterAll registers every spreadsheet and document tool bound to env.
func RegisterAll(r *Registry, env *Env) error {
	groups := [][]tool{
		env.workbookTools(),
		env.sheetTools(),
		env.dataTools(),
		env.rangeTools(),
		env.formatTools(),
		env.formulaTools(),
		env.analysisTools(),
		env.documentTools(),
	}
	for _, g := range groups {
		for _, t := range g {
			if err := r.Register(t.desc, t.handler); err != nil {
				return err
			}
		}
	}
	return nil
}

func fileParam(desc string) Param {
	return Param{Name: "filepath", Type: String, Required: true, Description: desc}
}

func localFileParam() Param {
	return fileParam("Path to the Excel workbook (.xlsx). Relative names resolve against the files directory.")
}

func remoteFileParam() Param {
	return fileParam("Workbook path or http(s) URL. URLs are downloaded to a temporary file and removed afterwards.")
}

func sheetParam(required bool) Param {
	p := Param{Name: "sheet_name", Type: String, Required: required, Description: "Worksheet name"}
	if !required {
		p.Description = "Worksheet name (defaults to the first sheet)"
	}
	return p
}

func cellParam(name, desc string, required bool) Param {
	return Param{Name: name, Type: String, Required: required, Description: desc}
}

// read opens a workbook (local or downloaded) under the shared lock.
func (e *Env) read(ctx context.Context, name string, fn func(f *excelize.File, ref *paths.Ref) error) error {
	ref, err := e.Acquire(ctx, "filepath", name)
	if err != nil {
		return err
	}
	defer release(ctx, ref)
	return e.Books.WithRead(ctx, ref.Local, func(f *excelize.File) error {
		return fn(f, ref)
	})
}

// write opens a local workbook under the exclusive lock and saves it when fn
// succeeds.
func (e *Env) write(ctx context.Context, name string, fn func(f *excelize.File) error) (string, error) {
	p, err := e.Target("filepath", name)
	if err != nil {
		return "", err
	}
	return p, e.Books.WithWrite(ctx, p, false, fn)
}

// displayName is the file name reported back to clients.
func displayName(ref *paths.Ref) string {
	if ref.Temp {
		if u, err := url.Parse(ref.Logical); err == nil {
			if b := path.Base(u.Path); b != "." && b != "/" {
				return b
			}
		}
		return ref.Logical
	}
	return filepath.Base(ref.Local)
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
