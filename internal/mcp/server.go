package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/regolith-ai/regolith/internal/pipeline"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes lunar corpus retrieval tools.
type Server struct {
	retriever   pipeline.Retriever
	interpreter pipeline.Interpreter
	mcp         *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(retriever pipeline.Retriever, interpreter pipeline.Interpreter) *Server {
	s := &Server{
		retriever:   retriever,
		interpreter: interpreter,
	}

	s.mcp = server.NewMCPServer(
		"regolith",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

func (s *Server) registerTools() {
	s.mcp.AddTool(retrievePassagesTool, s.handleRetrievePassages)
	s.mcp.AddTool(interpretQueryTool, s.handleInterpretQuery)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
