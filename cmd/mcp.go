package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/gynoid/internal/audit"
	"github.com/ziadkadry99/gynoid/internal/db"
	mcpserver "github.com/ziadkadry99/gynoid/internal/mcp"
	"github.com/ziadkadry99/gynoid/internal/registry"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing read-only tools over the droid registry and the audit trail.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		store, err := registry.Open(cfg.Registry)
		if err != nil {
			return fmt.Errorf("opening registry: %w", err)
		}

		var log mcpserver.AuditLog
		if _, err := os.Stat(cfg.AuditDB); err == nil {
			database, err := db.Open(cfg.AuditDB)
			if err != nil {
				return fmt.Errorf("opening audit database: %w", err)
			}
			defer database.Close()
			log = audit.NewStore(database, logger)
		} else {
			fmt.Fprintf(os.Stderr, "Warning: no audit database at %s, audit_log is disabled\n", cfg.AuditDB)
		}

		mcpserver.Version = Version
		fmt.Fprintf(os.Stderr, "gynoid MCP server started on stdio (registry=%s)\n", store.Path())

		return mcpserver.NewServer(store, log).Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
