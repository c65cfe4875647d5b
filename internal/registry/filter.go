package registry

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/vinodismyname/sheetrelay/pkg/result"
)

// WriteToolFilter hides tools that modify files unless writes are enabled.
// Enable with enable_writes in the config file or SHEETRELAY_ENABLE_WRITES=true.
type WriteToolFilter struct {
	allowWrites bool
	writes      map[string]bool
}

// NewWriteToolFilter builds a filter from the registry's Write descriptors.
func NewWriteToolFilter(r *Registry, allowWrites bool) *WriteToolFilter {
	writes := map[string]bool{}
	for _, d := range r.Descriptors() {
		if d.Write {
			writes[d.Name] = true
		}
	}
	return &WriteToolFilter{allowWrites: allowWrites, writes: writes}
}

// FilterTools implements server tool filtering semantics.
func (f *WriteToolFilter) FilterTools(ctx context.Context, tools []mcp.Tool) []mcp.Tool {
	if f.allowWrites {
		return tools
	}
	out := make([]mcp.Tool, 0, len(tools))
	for _, t := range tools {
		if f.writes[t.Name] {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Allowed reports whether name may be called.
func (f *WriteToolFilter) Allowed(name string) bool {
	return f.allowWrites || !f.writes[name]
}

// ToolMiddleware rejects calls to hidden tools as if they were not registered.
func (f *WriteToolFilter) ToolMiddleware(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !f.Allowed(req.Params.Name) {
			return result.ToCallToolResult(result.Fail(result.UnknownOperation,
				"unknown operation %q (write tools are disabled)", req.Params.Name)), nil
		}
		return next(ctx, req)
	}
}
