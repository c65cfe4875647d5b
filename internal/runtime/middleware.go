package runtime

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/vinodismyname/sheetrelay/pkg/result"
)

// Middleware applies the Controller's admission and deadline to tool calls.
type Middleware struct {
	ctrl *Controller
}

// NewMiddleware wraps ctrl for use with server.WithToolHandlerMiddleware.
func NewMiddleware(ctrl *Controller) *Middleware {
	return &Middleware{ctrl: ctrl}
}

// ToolMiddleware admits the call, bounds it by OperationTimeout and turns
// saturation and deadline overruns into in-band failures.
func (m *Middleware) ToolMiddleware(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limits := m.ctrl.Limits()
		log := zerolog.Ctx(ctx).With().Str("tool", req.Params.Name).Logger()

		release, err := m.ctrl.Admit(ctx)
		switch {
		case errors.Is(err, ErrBusy):
			log.Warn().Int("in_flight", m.ctrl.InFlight()).Msg("tool call rejected: busy")
			return result.ToCallToolResult(result.Fail(result.BusyResource,
				"%d tool calls already running", limits.MaxConcurrentRequests)), nil
		case err != nil:
			return nil, err
		}
		defer release()

		callCtx := ctx
		if limits.OperationTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, limits.OperationTimeout)
			defer cancel()
		}

		res, err := next(callCtx, req)
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && (err != nil || res == nil) {
			log.Warn().Dur("timeout", limits.OperationTimeout).Msg("tool call timed out")
			return result.ToCallToolResult(result.Fail(result.Timeout,
				"%s did not finish within %s", req.Params.Name, limits.OperationTimeout)), nil
		}
		return res, err
	}
}
