package telemetry

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestToolCallDuration(t *testing.T) {
	var buf bytes.Buffer
	h := NewHooks(zerolog.New(&buf))
	now := time.Unix(100, 0)
	h.clock = func() time.Time { return now }
	hooks := h.Server()

	req := &mcp.CallToolRequest{}
	req.Params.Name = "rename_worksheet"
	for _, fn := range hooks.OnBeforeCallTool {
		fn(context.Background(), 7, req)
	}
	now = now.Add(250 * time.Millisecond)
	for _, fn := range hooks.OnAfterCallTool {
		fn(context.Background(), 7, req, mcp.NewToolResultError("Error: SheetError: exists"))
	}

	out := buf.String()
	require.Contains(t, out, `"tool":"rename_worksheet"`)
	require.Contains(t, out, `"duration":250`)
	require.Contains(t, out, `"is_error":true`)
	require.Contains(t, out, `"level":"warn"`)

	_, pending := h.started.Load(key(7))
	require.False(t, pending)
}

func TestOnErrorClearsPending(t *testing.T) {
	var buf bytes.Buffer
	h := NewHooks(zerolog.New(&buf))
	hooks := h.Server()

	for _, fn := range hooks.OnBeforeCallTool {
		fn(context.Background(), "a", &mcp.CallToolRequest{})
	}
	for _, fn := range hooks.OnError {
		fn(context.Background(), "a", mcp.MethodToolsCall, nil, errors.New("boom"))
	}
	_, pending := h.started.Load(key("a"))
	require.False(t, pending)
	require.Contains(t, buf.String(), "request error")
}
