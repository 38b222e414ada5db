package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/gynoid/internal/audit"
)

var listDroidsTool = mcp.NewTool("list_droids",
	mcp.WithDescription("List the droids in the registry with their installed extensions."),
)

var listExtensionsTool = mcp.NewTool("list_extensions",
	mcp.WithDescription("List the extensions installed on a droid, with their source repositories."),
	mcp.WithString("droid",
		mcp.Required(),
		mcp.Description("Droid name"),
	),
)

var listKeysTool = mcp.NewTool("list_keys",
	mcp.WithDescription("List the configuration key names visible to a droid. Values are never returned."),
	mcp.WithString("droid",
		mcp.Required(),
		mcp.Description("Droid name"),
	),
)

var resolveRepositoryTool = mcp.NewTool("resolve_repository",
	mcp.WithDescription("Resolve an extension repository URL or organization/name shorthand into its clone URL and extension name."),
	mcp.WithString("repository",
		mcp.Required(),
		mcp.Description("Clone URL or organization/name[#ref]"),
	),
)

var auditLogTool = mcp.NewTool("audit_log",
	mcp.WithDescription("Show recent fleet changes from the audit trail, newest first."),
	mcp.WithString("droid",
		mcp.Description("Only entries for this droid"),
	),
	mcp.WithString("action",
		mcp.Description("Only entries with this action"),
		mcp.Enum(
			string(audit.ActionDroidStarted),
			string(audit.ActionDroidRemoved),
			string(audit.ActionDroidDisconnected),
			string(audit.ActionDroidReloaded),
			string(audit.ActionExtensionInstalled),
			string(audit.ActionExtensionRemoved),
			string(audit.ActionKeyAdded),
			string(audit.ActionKeyRemoved),
		),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of entries to return (default 20)"),
	),
)
