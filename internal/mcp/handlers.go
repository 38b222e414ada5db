package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/gynoid/internal/audit"
	"github.com/ziadkadry99/gynoid/internal/cluster"
)

// reload picks up changes written by a running `gynoid serve`.
func (s *Server) reload() error {
	return s.registry.Load()
}

func (s *Server) handleListDroids(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.reload(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read registry: %v", err)), nil
	}

	droids := s.registry.Droids()
	if len(droids) == 0 {
		return mcp.NewToolResultText("No droids registered. Run `gynoid serve` to register the management droid."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d droid(s):\n", len(droids))
	for _, d := range droids {
		names := make([]string, 0, len(d.Extensions))
		for _, e := range d.Extensions {
			names = append(names, e.Name)
		}
		if len(names) == 0 {
			fmt.Fprintf(&sb, "- %s (no extensions)\n", d.Name)
			continue
		}
		fmt.Fprintf(&sb, "- %s: %s\n", d.Name, strings.Join(names, ", "))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleListExtensions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("droid")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: droid"), nil
	}
	if err := s.reload(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read registry: %v", err)), nil
	}

	d, ok := s.registry.Droid(name)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("droid %q not found", name)), nil
	}
	if len(d.Extensions) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("Droid %s has no extensions.", name)), nil
	}

	var sb strings.Builder
	for _, e := range d.Extensions {
		fmt.Fprintf(&sb, "- %s (%s)\n", e.Name, e.Repository)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleListKeys(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("droid")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: droid"), nil
	}
	if err := s.reload(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read registry: %v", err)), nil
	}

	keys, err := s.registry.ListKeys(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(keys) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("Droid %s has no keys.", name)), nil
	}
	return mcp.NewToolResultText(strings.Join(keys, "\n")), nil
}

func (s *Server) handleResolveRepository(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := request.RequireString("repository")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: repository"), nil
	}

	repo, err := cluster.ResolveRepository(input)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Name: %s\nOrganization: %s\nURL: %s\n", repo.Name, repo.Organization, repo.URL)), nil
}

func (s *Server) handleAuditLog(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", 20)
	if limit <= 0 {
		limit = 20
	}
	filter := audit.QueryFilter{
		Droid:  request.GetString("droid", ""),
		Action: audit.Action(request.GetString("action", "")),
		Limit:  limit,
	}

	entries, err := s.audit.Query(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("audit query failed: %v", err)), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("No audit entries found."), nil
	}
	return mcp.NewToolResultText(formatEntries(entries)), nil
}

func formatEntries(entries []audit.Entry) string {
	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "%s %s %s", e.Timestamp.UTC().Format("2006-01-02T15:04:05Z"), e.Actor, e.Action)
		if e.Droid != "" {
			fmt.Fprintf(&sb, " droid=%s", e.Droid)
		}
		if e.Summary != "" {
			fmt.Fprintf(&sb, ": %s", e.Summary)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
