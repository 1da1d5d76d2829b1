// Package mcpserver exposes the assistant's tool registry over the Model
// Context Protocol so other agents can drive the calendar, Zoom and inbox tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jkaninda/huddle/internal/tools"
)

// Executor runs a tool by name. *agent.Agent satisfies it, adding metrics
// and tracing around each call.
type Executor interface {
	ExecuteTool(ctx context.Context, name string, params map[string]any) (*tools.Result, error)
}

// Server wraps an MCP server whose tools mirror a tools.Registry.
type Server struct {
	mcp      *server.MCPServer
	executor Executor
	logger   *slog.Logger
}

// New registers every tool in reg. Calls go through exec when it is
// non-nil and straight to the registry otherwise.
func New(name, version string, reg *tools.Registry, exec Executor, logger *slog.Logger) (*Server, error) {
	if exec == nil {
		exec = registryExecutor{reg}
	}
	s := &Server{
		mcp:      server.NewMCPServer(name, version, server.WithToolCapabilities(false)),
		executor: exec,
		logger:   logger,
	}
	for _, t := range reg.All() {
		schema, err := json.Marshal(t.InputSchema())
		if err != nil {
			return nil, fmt.Errorf("encoding schema for %s: %w", t.Name(), err)
		}
		s.mcp.AddTool(mcp.NewToolWithRawSchema(t.Name(), t.Description(), schema), s.handler(t.Name()))
	}
	return s, nil
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcp }

// Serve speaks MCP over stdin/stdout until ctx is cancelled or input ends.
func (s *Server) Serve(ctx context.Context) error {
	return s.Listen(ctx, os.Stdin, os.Stdout)
}

// Listen speaks MCP over the given streams.
func (s *Server) Listen(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("mcp server listening on stdio")
	stdio := server.NewStdioServer(s.mcp)
	if err := stdio.Listen(ctx, in, out); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp stdio: %w", err)
	}
	return nil
}

func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		params := req.GetArguments()
		if params == nil {
			params = map[string]any{}
		}

		res, err := s.executor.ExecuteTool(ctx, name, params)
		if err != nil {
			s.logger.WarnContext(ctx, "mcp tool call failed",
				slog.String("tool", name),
				slog.String("error", err.Error()),
			)
			return mcp.NewToolResultError("Error: " + err.Error()), nil
		}
		if !res.Success {
			return mcp.NewToolResultError(res.Output), nil
		}
		return mcp.NewToolResultText(res.Output), nil
	}
}

// registryExecutor validates and executes without instrumentation.
type registryExecutor struct {
	reg *tools.Registry
}

func (r registryExecutor) ExecuteTool(ctx context.Context, name string, params map[string]any) (*tools.Result, error) {
	t := r.reg.Get(name)
	if t == nil {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
	if err := t.Validate(params); err != nil {
		return nil, fmt.Errorf("tool %s validation: %w", name, err)
	}
	return t.Execute(ctx, params)
}
