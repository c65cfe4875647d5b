package sheets

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/xuri/efp"
	"github.com/xuri/excelize/v2"
)

// MaxFormulaLength matches Excel's formula length limit.
const MaxFormulaLength = 8192

// blockedFunctions reach outside the workbook when evaluated.
var blockedFunctions = []string{
	"INDIRECT", "HYPERLINK", "WEBSERVICE", "RTD", "CALL", "REGISTER.ID", "GET.WORKBOOK",
	"IMPORTDATA", "IMPORTXML", "IMPORTHTML", "IMPORTFEED", "IMPORTRANGE",
}

// FormulaReport describes a validated (and possibly applied) formula.
type FormulaReport struct {
	Cell       string   `json:"cell"`
	Formula    string   `json:"formula"`
	Functions  []string `json:"functions,omitempty"`
	References []string `json:"references,omitempty"`
	Value      string   `json:"calculated_value,omitempty"`
	CalcIssue  string   `json:"calculation_issue,omitempty"`
}

// ValidateFormula checks formula syntax and its references against the workbook
// without modifying it.
func ValidateFormula(f *excelize.File, sheet, cell, formula string) (*FormulaReport, error) {
	if _, err := sheetIndex(f, "validate formula", sheet); err != nil {
		return nil, err
	}
	if _, _, err := ParseCell("cell", cell); err != nil {
		return nil, err
	}
	body := strings.TrimPrefix(strings.TrimSpace(formula), "=")
	if body == "" {
		return nil, invalid("formula", formula, "is required")
	}
	if len(body) > MaxFormulaLength {
		return nil, invalid("formula", formula, "exceeds %d characters", MaxFormulaLength)
	}
	if err := checkBalanced(body); err != nil {
		return nil, invalid("formula", formula, "%v", err)
	}

	ps := efp.ExcelParser()
	tokens := ps.Parse("=" + body)
	rep := &FormulaReport{Cell: strings.ToUpper(cell), Formula: "=" + body}
	for _, tok := range tokens {
		switch {
		case tok.TType == efp.TokenTypeUnknown:
			return nil, invalid("formula", formula, "has an unrecognized token %q", tok.TValue)
		case tok.TType == efp.TokenTypeFunction && tok.TSubType == efp.TokenSubTypeStart:
			name := strings.ToUpper(tok.TValue)
			if slices.Contains(blockedFunctions, name) {
				return nil, invalid("formula", formula, "uses blocked function %s", name)
			}
			if !slices.Contains(rep.Functions, name) {
				rep.Functions = append(rep.Functions, name)
			}
		case tok.TType == efp.TokenTypeOperand && tok.TSubType == efp.TokenSubTypeRange:
			if err := checkReference(f, formula, tok.TValue); err != nil {
				return nil, err
			}
			rep.References = append(rep.References, tok.TValue)
		}
	}
	return rep, nil
}

// ApplyFormula validates and stores the formula, then evaluates it. Evaluation
// issues are reported, not failed on, since excelize does not implement every
// Excel function.
func ApplyFormula(f *excelize.File, sheet, cell, formula string) (*FormulaReport, error) {
	rep, err := ValidateFormula(f, sheet, cell, formula)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellFormula(sheet, rep.Cell, strings.TrimPrefix(rep.Formula, "=")); err != nil {
		return nil, &CalculationError{Cell: rep.Cell, Formula: rep.Formula, Cause: err}
	}
	v, err := f.CalcCellValue(sheet, rep.Cell)
	if err != nil {
		rep.CalcIssue = err.Error()
		return rep, nil
	}
	rep.Value = v
	return rep, nil
}

func checkReference(f *excelize.File, formula, ref string) error {
	sheet, _, err := ParseRange("formula", ref)
	if err != nil {
		// Not an A1 reference: treat as a defined name or a whole column/row ref.
		return nil
	}
	if sheet == "" {
		return nil
	}
	idx, err := f.GetSheetIndex(sheet)
	if err != nil || idx < 0 {
		return &CalculationError{Formula: formula, Cell: ref, Cause: fmt.Errorf("referenced sheet '%s' does not exist", sheet)}
	}
	return nil
}

// checkBalanced verifies parentheses and string quotes outside string literals.
func checkBalanced(body string) error {
	depth := 0
	inString := false
	for _, r := range body {
		switch {
		case r == '"':
			inString = !inString
		case inString:
		case r == '(':
			depth++
		case r == ')':
			depth--
			if depth < 0 {
				return errors.New("has an unmatched closing parenthesis")
			}
		}
	}
	if inString {
		return errors.New("has an unterminated string literal")
	}
	if depth != 0 {
		return errors.New("has unbalanced parentheses")
	}
	return nil
}
