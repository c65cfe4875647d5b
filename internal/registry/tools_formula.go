package registry

import (
	"context"

	"github.com/vinodismyname/sheetrelay/internal/paths"
	"github.com/vinodismyname/sheetrelay/internal/sheets"
	"github.com/vinodismyname/sheetrelay/pkg/result"
	"github.com/xuri/excelize/v2"
)

type formulaInput struct {
	Filepath  string `json:"filepath" validate:"required"`
	SheetName string `json:"sheet_name" validate:"required,sheetname"`
	Cell      string `json:"cell" validate:"required,cellref"`
	Formula   string `json:"formula" validate:"required"`
}

var formulaKinds = []result.Kind{result.Calculation, result.Sheet}

func formulaParams(file Param) []Param {
	return []Param{
		file,
		sheetParam(true),
		cellParam("cell", "Target cell", true),
		{Name: "formula", Type: String, Required: true, Description: "Formula, with or without the leading '='"},
	}
}

func (e *Env) formulaTools() []tool {
	return []tool{
		{
			desc: Descriptor{
				Name:        "apply_formula",
				Description: "Validate a formula, write it to a cell and report the calculated value.",
				Params:      formulaParams(localFileParam()),
				Write:       true,
			},
			handler: Typed("apply_formula", formulaKinds, e.applyFormula),
		},
		{
			desc: Descriptor{
				Name:        "validate_formula_syntax",
				Description: "Check a formula's syntax and references without changing the workbook.",
				Params:      formulaParams(remoteFileParam()),
			},
			handler: Typed("validate_formula_syntax", formulaKinds, e.validateFormula),
		},
	}
}

func (e *Env) applyFormula(ctx context.Context, in *formulaInput) (result.Result, error) {
	var rep *sheets.FormulaReport
	if _, err := e.write(ctx, in.Filepath, func(f *excelize.File) error {
		var err error
		rep, err = sheets.ApplyFormula(f, in.SheetName, in.Cell, in.Formula)
		return err
	}); err != nil {
		return nil, err
	}
	return result.Success{
		Message: "Applied formula '" + rep.Formula + "' to " + rep.Cell,
		Payload: rep,
	}, nil
}

func (e *Env) validateFormula(ctx context.Context, in *formulaInput) (result.Result, error) {
	var rep *sheets.FormulaReport
	err := e.read(ctx, in.Filepath, func(f *excelize.File, _ *paths.Ref) error {
		var err error
		rep, err = sheets.ValidateFormula(f, in.SheetName, in.Cell, in.Formula)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result.Success{
		Message: "Formula '" + rep.Formula + "' is valid for " + rep.Cell,
		Payload: rep,
	}, nil
}
