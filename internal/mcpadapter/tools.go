package mcpadapter

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/RamXX/memory-mcp/internal/errs"
	"github.com/RamXX/memory-mcp/internal/tools"
)

// protocolError carries a taxonomy-derived code alongside the message, so
// a failed tools/call surfaces as a protocol-level error rather than a
// successful result with an error string buried in its content.
type protocolError struct {
	Code    int
	Message string
}

func (e *protocolError) Error() string { return e.Message }

// codeOf maps the error taxonomy onto the protocol's numeric error codes.
func codeOf(kind errs.Kind) int {
	switch kind {
	case errs.InvalidRequest, errs.SchemaValidationError, errs.ParseError:
		return -32602 // invalid params
	case errs.NotFound:
		return -32001
	case errs.AlreadyExists:
		return -32002
	case errs.Timeout:
		return -32003
	default:
		return -32603 // internal error
	}
}

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	return &protocolError{Code: codeOf(errs.KindOf(err)), Message: err.Error()}
}

// handlerFor returns the generic MCP tool handler for the named registry
// tool: it marshals the MCP-supplied arguments back to JSON, runs them
// through the registry (schema validation, policy, logging all happen
// there), and reports the result as a single text content block.
func (s *Server) handlerFor(name string) func(context.Context, *mcp.CallToolRequest, map[string]any) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input map[string]any) (*mcp.CallToolResult, any, error) {
		raw, err := json.Marshal(input)
		if err != nil {
			return nil, nil, wrapError(errs.Wrap(errs.InvalidRequest, "mcpadapter.handler", err))
		}

		result, err := s.registry.Execute(ctx, name, raw, tools.InvocationContext{}, nil)
		if err != nil {
			return nil, nil, wrapError(err)
		}

		encoded, err := json.Marshal(result)
		if err != nil {
			return nil, nil, wrapError(errs.Wrap(errs.Internal, "mcpadapter.handler", err))
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(encoded)}},
		}, result, nil
	}
}
