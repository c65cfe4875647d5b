package registry

import (
	"context"
	"encoding/json"
	"errors"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/vinodismyname/sheetrelay/pkg/result"
	"github.com/vinodismyname/sheetrelay/pkg/validation"
)

// alwaysAllowed kinds surface as in-band failures from every tool.
var alwaysAllowed = []result.Kind{result.Validation, result.Fetch, result.Workbook}

// Typed adapts a function over a typed input struct into a Handler. Inputs
// are decoded from the normalized argument map and validated before run is
// called. Classified errors whose kind is declared (or always allowed) become
// Failures; anything else is logged and returned as a Go error.
func Typed[In any](name string, kinds []result.Kind, run func(ctx context.Context, in *In) (result.Result, error)) Handler {
	allowed := append(slices.Clone(alwaysAllowed), kinds...)
	return func(ctx context.Context, args map[string]any) (result.Result, error) {
		in := new(In)
		if err := decode(args, in); err != nil {
			return result.Fail(result.Validation, "%s", err.Error()), nil
		}
		if err := validation.ValidateStruct(in); err != nil {
			return result.Fail(result.Validation, "%s", err.Error()), nil
		}

		res, err := run(ctx, in)
		if err == nil {
			return res, nil
		}
		if kind, ok := result.Classify(err); ok && slices.Contains(allowed, kind) {
			zerolog.Ctx(ctx).Debug().Err(err).Str("kind", string(kind)).Msg("tool failed")
			return result.Fail(kind, "%s", err.Error()), nil
		}
		zerolog.Ctx(ctx).Error().Err(err).Str("tool", name).Msg("unclassified tool error")
		return nil, err
	}
}

// decode binds args onto dst through mcp-go's request binding and maps JSON
// type mismatches onto the offending field.
func decode(args map[string]any, dst any) error {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	if err := req.BindArguments(dst); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) && te.Field != "" {
			return &validation.Error{Field: te.Field, Message: "has the wrong type"}
		}
		return &validation.Error{Field: "input", Message: "is invalid"}
	}
	return nil
}
