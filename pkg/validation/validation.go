package validation

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/vinodismyname/sheetrelay/pkg/pagination"
	"github.com/vinodismyname/sheetrelay/pkg/result"
	"github.com/xuri/excelize/v2"
)

var (
	v    *validator.Validate
	once sync.Once
)

// Error names the first offending field of a request.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string     { return e.Field + " " + e.Message }
func (e *Error) Kind() result.Kind { return result.Validation }

func newError(field, msg string) *Error { return &Error{Field: field, Message: msg} }

func cellCoords(s string) (int, int, error) {
	return excelize.CellNameToCoordinates(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "$", "")))
}

// Validator returns a singleton validator with custom rules registered. Field
// names in errors are the json tag names.
func Validator() *validator.Validate {
	once.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		// A1 cell reference, absolute markers allowed
		_ = v.RegisterValidation("cellref", func(fl validator.FieldLevel) bool {
			_, _, err := cellCoords(fl.Field().String())
			return err == nil
		})
		// "A1" or "A1:B2", optionally sheet qualified, with the end not before the start
		_ = v.RegisterValidation("a1range", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			if i := strings.LastIndex(s, "!"); i >= 0 {
				s = s[i+1:]
			}
			parts := strings.Split(s, ":")
			if len(parts) > 2 {
				return false
			}
			c1, r1, err := cellCoords(parts[0])
			if err != nil {
				return false
			}
			if len(parts) == 1 {
				return true
			}
			c2, r2, err := cellCoords(parts[1])
			return err == nil && c2 >= c1 && r2 >= r1
		})
		// End cell must not precede the sibling start cell named by the param
		_ = v.RegisterValidation("cellafter", func(fl validator.FieldLevel) bool {
			end := fl.Field().String()
			if end == "" {
				return true
			}
			start := fl.Parent().FieldByName(fl.Param())
			if !start.IsValid() || start.Kind() != reflect.String {
				return false
			}
			c1, r1, err := cellCoords(start.String())
			if err != nil {
				return true // the start field reports its own error
			}
			c2, r2, err := cellCoords(end)
			return err == nil && c2 >= c1 && r2 >= r1
		})
		_ = v.RegisterValidation("sheetname", func(fl validator.FieldLevel) bool {
			s := strings.TrimSpace(fl.Field().String())
			return s != "" && len([]rune(s)) <= 31 && !strings.ContainsAny(s, `:\/?*[]`)
		})
		_ = v.RegisterValidation("filepath_ext", func(fl validator.FieldLevel) bool {
			s := strings.ToLower(strings.TrimSpace(fl.Field().String()))
			return strings.HasSuffix(s, ".xlsx") || strings.HasSuffix(s, ".xlsm") || strings.HasSuffix(s, ".xltx") || strings.HasSuffix(s, ".xltm")
		})
		_ = v.RegisterValidation("httpurl", func(fl validator.FieldLevel) bool {
			u, err := url.Parse(strings.TrimSpace(fl.Field().String()))
			return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
		})
		_ = v.RegisterValidation("cursor", func(fl validator.FieldLevel) bool {
			s := strings.TrimSpace(fl.Field().String())
			if s == "" {
				return true
			}
			_, err := pagination.Parse(s)
			return err == nil
		})
	})
	return v
}

// ValidateStruct validates s and returns the first violation, or nil.
func ValidateStruct(s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return newError("input", "is invalid")
	}
	fe := ve[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return newError(field, "is required")
	case "cellref":
		return newError(field, fmt.Sprintf("is not a valid cell reference: %q", fe.Value()))
	case "a1range":
		return newError(field, fmt.Sprintf("is not a valid range (use A1 or A1:D50 with the end after the start): %q", fe.Value()))
	case "cellafter":
		return newError(field, fmt.Sprintf("must not precede %s", snake(fe.Param())))
	case "sheetname":
		return newError(field, `must be 1-31 characters without : \ / ? * [ ]`)
	case "filepath_ext":
		return newError(field, "must be an Excel file (.xlsx, .xlsm, .xltx, .xltm)")
	case "httpurl":
		return newError(field, "must be an http:// or https:// URL")
	case "cursor":
		return newError(field, "is not a valid cursor; restart pagination without it")
	case "oneof":
		return newError(field, "must be one of: "+fe.Param())
	case "min", "max", "gte", "lte", "gt", "lt":
		return newError(field, fmt.Sprintf("must satisfy %s=%s", fe.Tag(), fe.Param()))
	}
	return newError(field, "is invalid")
}

// snake converts a Go field name such as StartCell to start_cell.
func snake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
