package sheets

import (
	"github.com/xuri/excelize/v2"
)

// CreateSheet adds an empty worksheet. Duplicate names are a SheetError.
func CreateSheet(f *excelize.File, name string) error {
	if err := ValidateSheetName("sheet_name", name); err != nil {
		return err
	}
	idx, err := f.GetSheetIndex(name)
	if err != nil {
		return &SheetError{Operation: "create", SheetName: name, Cause: err}
	}
	if idx >= 0 {
		return &SheetError{Operation: "create", SheetName: name, Cause: errSheetExists}
	}
	if _, err := f.NewSheet(name); err != nil {
		return &WorkbookError{Operation: "create sheet", Cause: err}
	}
	return nil
}

// EnsureSheet returns the sheet to write to, creating it when missing. An empty
// name selects the first worksheet.
func EnsureSheet(f *excelize.File, name string) (string, bool, error) {
	if name == "" {
		list := f.GetSheetList()
		if len(list) == 0 {
			return "", false, &WorkbookError{Operation: "select sheet", Cause: errSheetNotFound}
		}
		return list[0], false, nil
	}
	idx, err := f.GetSheetIndex(name)
	if err != nil {
		return "", false, &SheetError{Operation: "select", SheetName: name, Cause: err}
	}
	if idx >= 0 {
		return name, false, nil
	}
	if err := CreateSheet(f, name); err != nil {
		return "", false, err
	}
	return name, true, nil
}

// CopySheet duplicates source into a new sheet named target.
func CopySheet(f *excelize.File, source, target string) error {
	if err := ValidateSheetName("target_sheet", target); err != nil {
		return err
	}
	from, err := sheetIndex(f, "copy", source)
	if err != nil {
		return err
	}
	if idx, _ := f.GetSheetIndex(target); idx >= 0 {
		return &SheetError{Operation: "copy", SheetName: target, Cause: errSheetExists}
	}
	to, err := f.NewSheet(target)
	if err != nil {
		return &SheetError{Operation: "copy", SheetName: target, Cause: err}
	}
	if err := f.CopySheet(from, to); err != nil {
		return &SheetError{Operation: "copy", SheetName: source, Cause: err}
	}
	return nil
}

// DeleteSheet removes a worksheet. The last remaining sheet cannot be deleted.
func DeleteSheet(f *excelize.File, name string) error {
	if _, err := sheetIndex(f, "delete", name); err != nil {
		return err
	}
	if len(f.GetSheetList()) <= 1 {
		return &SheetError{Operation: "delete", SheetName: name, Cause: errLastSheet}
	}
	if err := f.DeleteSheet(name); err != nil {
		return &SheetError{Operation: "delete", SheetName: name, Cause: err}
	}
	return nil
}

// RenameSheet renames oldName to newName. Renaming onto an existing sheet is a
// SheetError.
func RenameSheet(f *excelize.File, oldName, newName string) error {
	if err := ValidateSheetName("new_name", newName); err != nil {
		return err
	}
	if _, err := sheetIndex(f, "rename", oldName); err != nil {
		return err
	}
	if idx, _ := f.GetSheetIndex(newName); idx >= 0 {
		return &SheetError{Operation: "rename", SheetName: newName, Cause: errSheetExists}
	}
	if err := f.SetSheetName(oldName, newName); err != nil {
		return &SheetError{Operation: "rename", SheetName: oldName, Cause: err}
	}
	return nil
}
