package mcp

import (
	"github.com/lukman83/adscout/internal/pipeline"
	"github.com/mark3labs/mcp-go/server"
)

const (
	serverName    = "adscout"
	serverVersion = "1.0.0"
)

func newServer(runner *pipeline.Runner, defaults Defaults) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	registerTools(s, runner, defaults)
	return s
}

// Serve starts the MCP stdio server with all tools registered.
func Serve(runner *pipeline.Runner, defaults Defaults) error {
	return server.ServeStdio(newServer(runner, defaults))
}
