package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/gynoid/internal/audit"
	"github.com/ziadkadry99/gynoid/internal/registry"
)

// Version is set via ldflags at build time.
var Version = "dev"

// AuditLog is the read side of the audit trail.
type AuditLog interface {
	Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Entry, error)
}

// Server wraps an MCP server that exposes read-only fleet tools.
type Server struct {
	registry *registry.Store
	audit    AuditLog
	mcp      *server.MCPServer
}

// NewServer creates a new MCP server over the registry file. log may be nil,
// in which case the audit_log tool is not offered.
func NewServer(store *registry.Store, log AuditLog) *Server {
	s := &Server{
		registry: store,
		audit:    log,
	}

	s.mcp = server.NewMCPServer(
		"gynoid",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(listDroidsTool, s.handleListDroids)
	s.mcp.AddTool(listExtensionsTool, s.handleListExtensions)
	s.mcp.AddTool(listKeysTool, s.handleListKeys)
	s.mcp.AddTool(resolveRepositoryTool, s.handleResolveRepository)
	if s.audit != nil {
		s.mcp.AddTool(auditLogTool, s.handleAuditLog)
	}
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
