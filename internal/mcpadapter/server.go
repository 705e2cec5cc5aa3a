// Package mcpadapter translates the agent tool-call protocol onto the
// tool registry: it advertises the registered tool list and dispatches
// each call into Registry.Execute, wrapping results and errors into the
// protocol's response shape.
package mcpadapter

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/RamXX/memory-mcp/internal/tools"
)

// Server adapts a tools.Registry onto an MCP server instance.
type Server struct {
	registry *tools.Registry
	mcp      *mcp.Server
}

// New builds a Server advertising every tool currently registered in
// registry. Tools registered after New returns are not picked up; callers
// should finish registration before calling New.
func New(registry *tools.Registry, name, version string) *Server {
	s := &Server{registry: registry}
	s.mcp = mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil)
	s.registerTools()
	return s
}

// Run serves the protocol over stdio until ctx is canceled or the
// transport's read side closes.
func (s *Server) Run(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	for _, t := range s.registry.List() {
		mcp.AddTool(s.mcp, &mcp.Tool{
			Name:        t.Name,
			Description: t.Description,
		}, s.handlerFor(t.Name))
	}
}
