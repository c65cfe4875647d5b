package sheets

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"github.com/xuri/excelize/v2"
)

// FormatOptions is the flattened style request for format_range.
type FormatOptions struct {
	Bold         bool
	Italic       bool
	Underline    bool
	FontSize     float64
	FontColor    string
	BgColor      string
	BorderStyle  string
	BorderColor  string
	NumberFormat string
	Alignment    string
	WrapText     bool
	MergeCells   bool
	Protection   map[string]any
	Conditional  map[string]any
}

var borderStyles = map[string]int{
	"thin": 1, "medium": 2, "dashed": 3, "dotted": 4, "thick": 5, "double": 6, "hair": 7,
	"mediumdashed": 8, "dashdot": 9, "mediumdashdot": 10, "dashdotdot": 11,
	"mediumdashdotdot": 12, "slantdashdot": 13,
}

var horizontalAlignments = map[string]string{
	"left": "left", "center": "center", "centre": "center", "right": "right",
	"justify": "justify", "fill": "fill", "general": "general", "distributed": "distributed",
	"center_continuous": "centerContinuous", "centercontinuous": "centerContinuous",
}

// FormatRange applies the style to every cell of span. The existing style of the
// top-left cell is the base, so unspecified attributes are preserved.
func FormatRange(f *excelize.File, sheet string, span Range, opts FormatOptions) error {
	if _, err := sheetIndex(f, "format", sheet); err != nil {
		return err
	}
	ref := span.Start() + ":" + span.End()
	base, err := baseStyle(f, sheet, span.Start())
	if err != nil {
		return &FormattingError{Operation: "read style", Range: ref, Cause: err}
	}
	style, err := buildStyle(base, opts)
	if err != nil {
		return &FormattingError{Operation: "build style", Range: ref, Cause: err}
	}
	id, err := f.NewStyle(style)
	if err != nil {
		return &FormattingError{Operation: "create style", Range: ref, Cause: err}
	}
	if err := f.SetCellStyle(sheet, span.Start(), span.End(), id); err != nil {
		return &FormattingError{Operation: "apply style", Range: ref, Cause: err}
	}
	if opts.MergeCells && (span.Rows() > 1 || span.Cols() > 1) {
		if err := f.MergeCell(sheet, span.Start(), span.End()); err != nil {
			return &FormattingError{Operation: "merge", Range: ref, Cause: err}
		}
	}
	if len(opts.Conditional) > 0 {
		if err := applyConditional(f, sheet, ref, opts.Conditional); err != nil {
			return err
		}
	}
	return nil
}

func baseStyle(f *excelize.File, sheet, cell string) (*excelize.Style, error) {
	id, err := f.GetCellStyle(sheet, cell)
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return &excelize.Style{}, nil
	}
	return f.GetStyle(id)
}

func buildStyle(s *excelize.Style, opts FormatOptions) (*excelize.Style, error) {
	if opts.Bold || opts.Italic || opts.Underline || opts.FontSize > 0 || opts.FontColor != "" {
		if s.Font == nil {
			s.Font = &excelize.Font{}
		}
		s.Font.Bold = s.Font.Bold || opts.Bold
		s.Font.Italic = s.Font.Italic || opts.Italic
		if opts.Underline {
			s.Font.Underline = "single"
		}
		if opts.FontSize > 0 {
			if opts.FontSize > 409 {
				return nil, fmt.Errorf("font_size %.0f exceeds 409", opts.FontSize)
			}
			s.Font.Size = opts.FontSize
		}
		if opts.FontColor != "" {
			c, err := colour(opts.FontColor)
			if err != nil {
				return nil, err
			}
			s.Font.Color = c
		}
	}
	if opts.BgColor != "" {
		c, err := colour(opts.BgColor)
		if err != nil {
			return nil, err
		}
		s.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{c}}
	}
	if opts.BorderStyle != "" {
		bs, ok := borderStyles[strings.ToLower(opts.BorderStyle)]
		if !ok {
			return nil, fmt.Errorf("unknown border_style %q", opts.BorderStyle)
		}
		bc := "000000"
		if opts.BorderColor != "" {
			c, err := colour(opts.BorderColor)
			if err != nil {
				return nil, err
			}
			bc = c
		}
		s.Border = nil
		for _, side := range []string{"left", "right", "top", "bottom"} {
			s.Border = append(s.Border, excelize.Border{Type: side, Color: bc, Style: bs})
		}
	}
	if opts.NumberFormat != "" {
		nf := opts.NumberFormat
		s.CustomNumFmt = &nf
	}
	if opts.Alignment != "" || opts.WrapText {
		if s.Alignment == nil {
			s.Alignment = &excelize.Alignment{}
		}
		if opts.Alignment != "" {
			h, ok := horizontalAlignments[strings.ToLower(opts.Alignment)]
			if !ok {
				return nil, fmt.Errorf("unknown alignment %q", opts.Alignment)
			}
			s.Alignment.Horizontal = h
		}
		s.Alignment.WrapText = s.Alignment.WrapText || opts.WrapText
	}
	if len(opts.Protection) > 0 {
		s.Protection = &excelize.Protection{
			Locked: cast.ToBool(opts.Protection["locked"]),
			Hidden: cast.ToBool(opts.Protection["hidden"]),
		}
	}
	return s, nil
}

// applyConditional supports colour scales, data bars and rule based formats
// ("cell", "top", "bottom", "average", "duplicate", "unique", "formula").
func applyConditional(f *excelize.File, sheet, ref string, rule map[string]any) error {
	typ := strings.ToLower(cast.ToString(rule["type"]))
	opts := excelize.ConditionalFormatOptions{Type: typ}
	switch typ {
	case "2_color_scale", "3_color_scale", "color_scale", "colour_scale":
		opts.Type = "2_color_scale"
		opts.MinType, opts.MaxType = "min", "max"
		opts.MinColor = colourOr(rule["min_color"], "F8696B")
		opts.MaxColor = colourOr(rule["max_color"], "63BE7B")
		if mid := cast.ToString(rule["mid_color"]); mid != "" {
			opts.Type = "3_color_scale"
			opts.MidType, opts.MidValue = "percentile", "50"
			opts.MidColor = colourOr(mid, "FFEB84")
		}
	case "data_bar", "databar":
		opts.Type = "data_bar"
		opts.MinType, opts.MaxType = "min", "max"
		opts.BarColor = colourOr(rule["bar_color"], "638EC6")
	case "cell", "top", "bottom", "average", "duplicate", "unique", "formula":
		opts.Criteria = cast.ToString(rule["criteria"])
		if opts.Criteria == "" {
			opts.Criteria = cast.ToString(rule["operator"])
		}
		opts.Value = cast.ToString(rule["value"])
		opts.MinValue = cast.ToString(rule["minimum"])
		opts.MaxValue = cast.ToString(rule["maximum"])
		look, err := ruleFormat(rule)
		if err != nil {
			return &FormattingError{Operation: "conditional format", Range: ref, Cause: err}
		}
		fc, bg := cast.ToString(look["font_color"]), cast.ToString(look["bg_color"])
		if fc == "" && bg == "" {
			// Excel's default highlight: light red fill, dark red text.
			fc, bg = "9C0006", "FFC7CE"
		}
		style := &excelize.Style{}
		if fc != "" {
			style.Font = &excelize.Font{Color: colourOr(fc, "9C0006"), Bold: cast.ToBool(look["bold"])}
		}
		if bg != "" {
			style.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{colourOr(bg, "FFC7CE")}}
		}
		id, err := f.NewConditionalStyle(style)
		if err != nil {
			return &FormattingError{Operation: "conditional style", Range: ref, Cause: err}
		}
		opts.Format = &id
	default:
		return &FormattingError{Operation: "conditional format", Range: ref, Cause: fmt.Errorf("unsupported type %q", typ)}
	}
	if err := f.SetConditionalFormat(sheet, ref, []excelize.ConditionalFormatOptions{opts}); err != nil {
		return &FormattingError{Operation: "conditional format", Range: ref, Cause: err}
	}
	return nil
}

// ruleFormat returns the look of a rule based format. Colours may sit in a
// nested "format" object or directly on the rule; nested keys win.
func ruleFormat(rule map[string]any) (map[string]any, error) {
	look := map[string]any{}
	for _, k := range []string{"font_color", "bg_color", "bold"} {
		if v, ok := rule[k]; ok {
			look[k] = v
		}
	}
	raw, ok := rule["format"]
	if !ok || raw == nil {
		return look, nil
	}
	nested, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("format must be an object, got %T", raw)
	}
	for k, v := range nested {
		switch k {
		case "font_color", "bg_color", "bold":
			look[k] = v
		default:
			return nil, fmt.Errorf("unsupported format key %q (want font_color, bg_color or bold)", k)
		}
	}
	return look, nil
}

// colour normalizes "#RRGGBB" / "RRGGBB" / "AARRGGBB" input.
func colour(s string) (string, error) {
	c := strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(s), "#"))
	if len(c) == 8 {
		c = c[2:]
	}
	if len(c) != 6 {
		return "", fmt.Errorf("colour %q must be a hex RGB value", s)
	}
	for _, r := range c {
		if !strings.ContainsRune("0123456789ABCDEF", r) {
			return "", fmt.Errorf("colour %q must be a hex RGB value", s)
		}
	}
	return c, nil
}

func colourOr(v any, fallback string) string {
	if c, err := colour(cast.ToString(v)); err == nil {
		return c
	}
	return fallback
}
