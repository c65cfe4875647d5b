package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

// Hooks logs MCP server lifecycle events and tool call outcomes.
type Hooks struct {
	logger  zerolog.Logger
	clock   func() time.Time
	started sync.Map // request id -> time.Time
}

// NewHooks constructs a Hooks instance with the provided logger.
func NewHooks(logger zerolog.Logger) *Hooks {
	return &Hooks{logger: logger, clock: time.Now}
}

// Server returns mcp-go hooks bound to h.
func (h *Hooks) Server() *server.Hooks {
	hooks := &server.Hooks{}

	hooks.AddOnRegisterSession(func(ctx context.Context, session server.ClientSession) {
		h.OnSessionStart(session.SessionID())
	})
	hooks.AddOnUnregisterSession(func(ctx context.Context, session server.ClientSession) {
		h.OnSessionEnd(session.SessionID())
	})
	hooks.AddAfterListTools(func(ctx context.Context, id any, req *mcp.ListToolsRequest, res *mcp.ListToolsResult) {
		h.logger.Debug().Int("tools", len(res.Tools)).Msg("list_tools served")
	})
	hooks.AddBeforeCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest) {
		h.started.Store(key(id), h.clock())
	})
	hooks.AddAfterCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest, res *mcp.CallToolResult) {
		isError := res != nil && res.IsError
		h.OnToolCall(req.Params.Name, h.elapsed(id), isError)
	})
	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		h.started.Delete(key(id))
		h.logger.Error().Str("method", string(method)).Err(err).Msg("request error")
	})

	return hooks
}

// OnSessionStart records the start of a client session.
func (h *Hooks) OnSessionStart(sessionID string) {
	h.logger.Info().Str("session_id", sessionID).Msg("session started")
}

// OnSessionEnd records the end of a client session.
func (h *Hooks) OnSessionEnd(sessionID string) {
	h.logger.Info().Str("session_id", sessionID).Msg("session ended")
}

// OnToolCall logs a completed tool invocation. In-band failures are warnings;
// transport faults are reported through OnError.
func (h *Hooks) OnToolCall(toolName string, duration time.Duration, isError bool) {
	evt := h.logger.Info()
	if isError {
		evt = h.logger.Warn()
	}
	evt.Str("tool", toolName).Dur("duration", duration).Bool("is_error", isError).Msg("tool call completed")
}

func (h *Hooks) elapsed(id any) time.Duration {
	v, ok := h.started.LoadAndDelete(key(id))
	if !ok {
		return 0
	}
	return h.clock().Sub(v.(time.Time))
}

func key(id any) string { return fmt.Sprint(id) }
