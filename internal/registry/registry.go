package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/spf13/cast"
	"github.com/tmc/langchaingo/llms"
	"github.com/vinodismyname/sheetrelay/pkg/result"
	"github.com/vinodismyname/sheetrelay/pkg/validation"
)

// ParamType is the loose argument type a tool parameter accepts.
type ParamType string

const (
	String     ParamType = "string"
	Boolean    ParamType = "boolean"
	Integer    ParamType = "integer"
	Number     ParamType = "number"
	StringList ParamType = "string_list"
	Object     ParamType = "object"
	Rows       ParamType = "rows"
)

// Param describes one tool argument.
type Param struct {
	Name        string
	Type        ParamType
	Required    bool
	Default     any
	Description string
	Enum        []string
}

// Descriptor is a tool's name, description and parameter list. Write marks
// tools that modify files; they can be hidden by the write filter.
type Descriptor struct {
	Name        string
	Description string
	Params      []Param
	Write       bool
}

// Handler runs a tool on normalized arguments.
type Handler func(ctx context.Context, args map[string]any) (result.Result, error)

type entry struct {
	desc    Descriptor
	handler Handler
}

// Registry maps tool names to descriptors and handlers. Tools are registered at
// startup and never removed.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// New constructs an empty Registry ready for tool population.
func New() *Registry {
	return &Registry{entries: map[string]entry{}}
}

// Register adds a tool. Names must be unique and required params carry no default.
func (r *Registry) Register(d Descriptor, h Handler) error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("registry: empty tool name")
	}
	if h == nil {
		return fmt.Errorf("registry: %s: nil handler", d.Name)
	}
	seen := map[string]bool{}
	for _, p := range d.Params {
		if p.Required && p.Default != nil {
			return fmt.Errorf("registry: %s: required param %q has a default", d.Name, p.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("registry: %s: duplicate param %q", d.Name, p.Name)
		}
		seen[p.Name] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.entries[d.Name]; dup {
		return fmt.Errorf("registry: tool %q already registered", d.Name)
	}
	r.entries[d.Name] = entry{desc: d, handler: h}
	return nil
}

// Get returns a descriptor by name when present.
func (r *Registry) Get(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.desc, ok
}

// Invoke validates args against the named tool's descriptor and runs it.
// Unknown names fail closed without touching any file.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (result.Result, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return result.Fail(result.UnknownOperation, "unknown operation %q", name), nil
	}
	norm, err := e.desc.normalize(args)
	if err != nil {
		return result.Failure{Kind: result.Validation, Message: err.Error()}, nil
	}
	return e.handler(ctx, norm)
}

// Descriptors returns all descriptors sorted by name.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Tools returns a stable-sorted list of MCP tool definitions.
func (r *Registry) Tools(ctx context.Context) ([]mcp.Tool, error) {
	descs := r.Descriptors()
	tools := make([]mcp.Tool, 0, len(descs))
	for _, d := range descs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tools = append(tools, d.Tool())
	}
	return tools, nil
}

// Mount registers every tool on srv. Each call gets a context logger tagged
// with the tool name.
func (r *Registry) Mount(srv *server.MCPServer) {
	for _, d := range r.Descriptors() {
		name := d.Name
		srv.AddTool(d.Tool(), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			logger := zerolog.Ctx(ctx).With().Str("tool", name).Logger()
			ctx = logger.WithContext(ctx)
			res, err := r.Invoke(ctx, name, req.GetArguments())
			if err != nil {
				return nil, err
			}
			return result.ToCallToolResult(res), nil
		})
	}
}

// ModelContextSize exposes the configured model's context window when available.
func (r *Registry) ModelContextSize(modelName string) int {
	return llms.GetModelContextSize(modelName)
}

// CatalogTokens estimates how many prompt tokens the tool catalog costs a
// client using modelName.
func (r *Registry) CatalogTokens(ctx context.Context, modelName string) (int, error) {
	tools, err := r.Tools(ctx)
	if err != nil {
		return 0, err
	}
	b, err := json.Marshal(tools)
	if err != nil {
		return 0, err
	}
	return llms.CountTokens(modelName, string(b)), nil
}

// Tool renders the descriptor as an MCP tool schema.
func (d Descriptor) Tool() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(d.Description),
		mcp.WithReadOnlyHintAnnotation(!d.Write),
		mcp.WithDestructiveHintAnnotation(d.Write),
	}
	for _, p := range d.Params {
		props := []mcp.PropertyOption{mcp.Description(p.Description)}
		if p.Required {
			props = append(props, mcp.Required())
		}
		switch p.Type {
		case String:
			if len(p.Enum) > 0 {
				props = append(props, mcp.Enum(p.Enum...))
			}
			if s, ok := p.Default.(string); ok {
				props = append(props, mcp.DefaultString(s))
			}
			opts = append(opts, mcp.WithString(p.Name, props...))
		case Boolean:
			if b, ok := p.Default.(bool); ok {
				props = append(props, mcp.DefaultBool(b))
			}
			opts = append(opts, mcp.WithBoolean(p.Name, props...))
		case Integer:
			if p.Default != nil {
				props = append(props, mcp.DefaultNumber(cast.ToFloat64(p.Default)))
			}
			opts = append(opts, mcp.WithNumber(p.Name, props...))
		case Number:
			opts = append(opts, mcp.WithNumber(p.Name, props...))
		case StringList:
			props = append(props, mcp.WithStringItems())
			opts = append(opts, mcp.WithArray(p.Name, props...))
		case Object:
			opts = append(opts, mcp.WithObject(p.Name, props...))
		case Rows:
			props = append(props, mcp.Items(map[string]any{
				"type":  "array",
				"items": map[string]any{"type": []string{"string", "number", "boolean", "null"}},
			}))
			opts = append(opts, mcp.WithArray(p.Name, props...))
		}
	}
	return mcp.NewTool(d.Name, opts...)
}

// normalize applies defaults and coerces loose argument types. Unknown
// arguments are dropped.
func (d Descriptor) normalize(args map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(d.Params))
	for _, p := range d.Params {
		v, present := args[p.Name]
		if !present || v == nil {
			if p.Required {
				return nil, &validation.Error{Field: p.Name, Message: "is required"}
			}
			if p.Default != nil {
				out[p.Name] = p.Default
			}
			continue
		}
		cv, err := coerce(p, v)
		if err != nil {
			return nil, &validation.Error{Field: p.Name, Message: err.Error()}
		}
		out[p.Name] = cv
	}
	return out, nil
}

func coerce(p Param, v any) (any, error) {
	switch p.Type {
	case String:
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, fmt.Errorf("must be a string")
		}
		if len(p.Enum) == 0 {
			return s, nil
		}
		for _, e := range p.Enum {
			if strings.EqualFold(strings.TrimSpace(s), e) {
				return e, nil
			}
		}
		return nil, fmt.Errorf("must be one of: %s", strings.Join(p.Enum, ", "))
	case Boolean:
		if s, ok := v.(string); ok {
			v = strings.ToLower(strings.TrimSpace(s))
		}
		b, err := cast.ToBoolE(v)
		if err != nil {
			return nil, fmt.Errorf("must be a boolean")
		}
		return b, nil
	case Integer:
		if f, ok := v.(float64); ok && f != math.Trunc(f) {
			return nil, fmt.Errorf("must be an integer")
		}
		if s, ok := v.(string); ok {
			v = strings.TrimSpace(s)
		}
		n, err := cast.ToIntE(v)
		if err != nil {
			return nil, fmt.Errorf("must be an integer")
		}
		return n, nil
	case Number:
		if s, ok := v.(string); ok {
			v = strings.TrimSpace(s)
		}
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, fmt.Errorf("must be a number")
		}
		return f, nil
	case StringList:
		if s, ok := v.(string); ok {
			return []string{s}, nil
		}
		list, err := cast.ToStringSliceE(v)
		if err != nil {
			return nil, fmt.Errorf("must be a list of strings")
		}
		return list, nil
	case Object:
		m, err := cast.ToStringMapE(v)
		if err != nil {
			return nil, fmt.Errorf("must be an object")
		}
		return m, nil
	case Rows:
		return coerceRows(v)
	}
	return v, nil
}

func coerceRows(v any) ([][]any, error) {
	list, ok := v.([]any)
	if !ok {
		if rows, ok := v.([][]any); ok {
			list = make([]any, len(rows))
			for i, r := range rows {
				list[i] = r
			}
		} else {
			return nil, fmt.Errorf("must be a list of rows")
		}
	}
	out := make([][]any, 0, len(list))
	for i, item := range list {
		row, ok := item.([]any)
		if !ok {
			return nil, fmt.Errorf("row %d must be a list of values", i+1)
		}
		for j, cell := range row {
			switch cell.(type) {
			case nil, string, bool, float64, int, int64, json.Number:
			default:
				return nil, fmt.Errorf("row %d column %d must be a scalar value", i+1, j+1)
			}
		}
		out = append(out, row)
	}
	return out, nil
}
