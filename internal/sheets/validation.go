package sheets

import (
	"strings"

	"github.com/xuri/excelize/v2"
)

// ValidationRule is a data validation rule attached to one or more ranges.
type ValidationRule struct {
	Ranges        []string `json:"ranges"`
	Type          string   `json:"type"`
	Operator      string   `json:"operator,omitempty"`
	AllowBlank    bool     `json:"allow_blank"`
	AllowedValues []string `json:"allowed_values,omitempty"`
	SourceRange   string   `json:"source_range,omitempty"`
	Minimum       string   `json:"minimum,omitempty"`
	Maximum       string   `json:"maximum,omitempty"`
	PromptTitle   string   `json:"prompt_title,omitempty"`
	Prompt        string   `json:"prompt,omitempty"`
	ErrorTitle    string   `json:"error_title,omitempty"`
	ErrorMessage  string   `json:"error_message,omitempty"`

	spans []Range
}

// DataValidations lists the sheet's data validation rules.
func DataValidations(f *excelize.File, sheet string) ([]ValidationRule, error) {
	if _, err := sheetIndex(f, "read validations", sheet); err != nil {
		return nil, err
	}
	dvs, err := f.GetDataValidations(sheet)
	if err != nil {
		return nil, &SheetError{Operation: "read validations", SheetName: sheet, Cause: err}
	}
	rules := make([]ValidationRule, 0, len(dvs))
	for _, dv := range dvs {
		if dv == nil || dv.Sqref == "" {
			continue
		}
		rules = append(rules, toRule(dv))
	}
	return rules, nil
}

func toRule(dv *excelize.DataValidation) ValidationRule {
	rule := ValidationRule{
		Ranges:       strings.Fields(dv.Sqref),
		Type:         dv.Type,
		Operator:     dv.Operator,
		AllowBlank:   dv.AllowBlank,
		PromptTitle:  deref(dv.PromptTitle),
		Prompt:       deref(dv.Prompt),
		ErrorTitle:   deref(dv.ErrorTitle),
		ErrorMessage: deref(dv.Error),
	}
	for _, ref := range rule.Ranges {
		if _, r, err := ParseRange("sqref", ref); err == nil {
			rule.spans = append(rule.spans, r)
		}
	}
	if dv.Type == "list" {
		f1 := strings.TrimSpace(dv.Formula1)
		if _, _, err := ParseRange("formula1", strings.TrimPrefix(f1, "=")); err == nil && !strings.HasPrefix(f1, `"`) {
			rule.SourceRange = f1
		} else {
			rule.AllowedValues = splitList(f1)
		}
		return rule
	}
	rule.Minimum = dv.Formula1
	rule.Maximum = dv.Formula2
	return rule
}

// ruleFor returns the first rule covering the cell.
func ruleFor(rules []ValidationRule, col, row int) *ValidationRule {
	for i := range rules {
		for _, s := range rules[i].spans {
			if s.Contains(col, row) {
				return &rules[i]
			}
		}
	}
	return nil
}

func splitList(list string) []string {
	list = strings.TrimSpace(list)
	if list == "" {
		return nil
	}
	list = strings.Trim(list, `"`)
	var out []string
	for _, p := range strings.Split(list, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
