package result

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Result is the outcome of a single tool invocation. It is either a Success or a
// Failure, never both.
type Result interface {
	isResult()
}

// Success carries a one-line human readable message and an optional payload that
// is rendered as indented JSON after the message.
type Success struct {
	Message string
	Payload any
}

// Failure is a classified, in-band tool error.
type Failure struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func (Success) isResult() {}
func (Failure) isResult() {}

// OK builds a Success without payload.
func OK(format string, args ...any) Success {
	return Success{Message: fmt.Sprintf(format, args...)}
}

// Fail builds a Failure. An empty message falls back to the catalog default.
func Fail(kind Kind, format string, args ...any) Failure {
	msg := strings.TrimSpace(fmt.Sprintf(format, args...))
	if msg == "" {
		msg = Lookup(kind).Message
	}
	return Failure{Kind: kind, Message: msg}
}

// String renders the legacy in-band form: "Error: <Kind>: <message>".
func (f Failure) String() string {
	return "Error: " + normalize(f.Kind, f.Message)
}

// Classified is implemented by errors that belong to the failure taxonomy.
type Classified interface {
	error
	Kind() Kind
}

// Classify reports the kind of the first classified error in err's chain.
func Classify(err error) (Kind, bool) {
	var c Classified
	if errors.As(err, &c) {
		return c.Kind(), true
	}
	return Unclassified, false
}

// FromError converts a classified error into a Failure.
func FromError(err error) (Failure, bool) {
	kind, ok := Classify(err)
	if !ok {
		return Failure{}, false
	}
	return Failure{Kind: kind, Message: err.Error()}, true
}

// ToCallToolResult serializes a Result for MCP transports. Failures keep the
// "Error:" text prefix and additionally expose {kind, message} as structured content.
func ToCallToolResult(r Result) *mcp.CallToolResult {
	switch v := r.(type) {
	case Success:
		text := v.Message
		if v.Payload == nil {
			return mcp.NewToolResultText(text)
		}
		if body, err := marshalPayload(v.Payload); err == nil {
			text = text + "\n" + body
		}
		return mcp.NewToolResultStructured(v.Payload, text)
	case *Success:
		return ToCallToolResult(*v)
	case Failure:
		res := mcp.NewToolResultError(v.String())
		res.StructuredContent = v
		return res
	case *Failure:
		return ToCallToolResult(*v)
	default:
		return mcp.NewToolResultError(Fail(Unclassified, "empty result").String())
	}
}
