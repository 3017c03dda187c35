package tools

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
)

// NewServer assembles an MCP server carrying the full tool catalogue,
// with every tool routed through the dispatcher.
func NewServer(d *Dispatcher, version string) *server.MCPServer {
	s := server.NewMCPServer("browser-agent", version,
		server.WithToolCapabilities(false),
	)
	for _, def := range d.Definitions() {
		s.AddTool(def.Tool, d.Handle)
	}
	return s
}

// ServeStdio speaks MCP over stdin/stdout until the client hangs up.
// Logging stays on stderr so it cannot corrupt the protocol stream.
func ServeStdio(d *Dispatcher, version string) error {
	slog.Info("mcp server on stdio", "tools", len(d.Definitions()))
	return server.ServeStdio(NewServer(d, version))
}
