package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/gynoid/internal/config"
	"github.com/ziadkadry99/gynoid/internal/registry"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize gynoid configuration with an interactive wizard",
	Long:  `Runs an interactive wizard that writes gynoid.yml and creates an empty droid registry.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.RunWizard(cfgFile)
		if err != nil {
			return err
		}
		if err := registry.Create(cfg.Registry, nil); err != nil {
			return fmt.Errorf("creating registry: %w", err)
		}
		fmt.Printf("Registry: %s\nRun `gynoid serve` to start the fleet.\n", cfg.Registry)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
