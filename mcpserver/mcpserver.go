// Package mcpserver exposes a tool registry over the Model Context Protocol
// so MCP clients can call the same tools the agent uses.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hupe1980/agentstarter/core"
	"github.com/hupe1980/agentstarter/logging"
	"github.com/hupe1980/agentstarter/metrics"
	"github.com/hupe1980/agentstarter/tool"
)

// Name is reported to MCP clients.
const Name = "agentstarter"

// Options configure a Server.
type Options struct {
	Version string
	Logger  logging.Logger
}

// Server wraps an MCPServer with one MCP tool per registry entry.
type Server struct {
	mcp      *server.MCPServer
	identity core.Identity
	tools    *tool.Registry
	logger   logging.Logger
}

// New registers every tool in tools. Calls run as identity.
func New(identity core.Identity, tools *tool.Registry, optFns ...func(o *Options)) (*Server, error) {
	opts := Options{Version: "0.1.0"}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{
		mcp:      server.NewMCPServer(Name, opts.Version, server.WithToolCapabilities(true)),
		identity: identity,
		tools:    tools,
		logger:   logging.OrNoOp(opts.Logger),
	}

	for _, t := range tools.Tools() {
		params := t.Parameters()
		if len(params) == 0 {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		schema, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("mcpserver: schema for %s: %w", t.Name(), err)
		}
		s.mcp.AddTool(mcp.NewToolWithRawSchema(t.Name(), t.Description(), schema), s.handler(t.Name()))
	}
	return s, nil
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcp }

// ServeStdio serves MCP over stdin/stdout until the input closes.
func (s *Server) ServeStdio() error {
	s.logger.Info("mcp.stdio.start", "agent_id", s.identity.String(), "tools", s.tools.Len())
	return server.ServeStdio(s.mcp)
}

// Handler serves MCP over streamable HTTP.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
}

func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := json.Marshal(req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError("error: " + err.Error()), nil
		}

		tc := core.NewStandaloneToolContext(ctx, s.identity, s.logger)
		start := time.Now()
		out, err := s.tools.Execute(tc, name, string(raw))

		resp := core.FunctionResponse{Name: name, Response: out}
		if err != nil {
			resp.Error = err.Error()
		}
		metrics.ObserveTool(name, metrics.StatusOf(err), time.Since(start))

		if err != nil {
			s.logger.Warn("mcp.tool.failed", "tool", name, "error", err.Error())
			return mcp.NewToolResultError(resp.Text()), nil
		}
		s.logger.Debug("mcp.tool.executed", "tool", name)
		return mcp.NewToolResultText(resp.Text()), nil
	}
}
