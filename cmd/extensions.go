package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var extensionsCmd = &cobra.Command{
	Use:     "extensions",
	Aliases: []string{"ext"},
	Short:   "Manage the extensions installed on a droid",
}

var extensionsListCmd = &cobra.Command{
	Use:   "list <droid>",
	Short: "List a droid's extensions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := apiClient()
		if err != nil {
			return err
		}
		exts, err := client.ListExtensions(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(exts) == 0 {
			fmt.Printf("Droid %s has no extensions.\n", args[0])
			return nil
		}
		for _, e := range exts {
			fmt.Printf("- %s (%s)\n", e.Name, e.Repository)
		}
		return nil
	},
}

var extensionsInstallCmd = &cobra.Command{
	Use:   "install <droid> <repository>",
	Short: "Install an extension from a git URL or organization/name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := apiClient()
		if err != nil {
			return err
		}
		repo, err := client.InstallExtension(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Droid %s successfully extended with %s\n", args[0], repo.Name)
		return nil
	},
}

var extensionsRemoveCmd = &cobra.Command{
	Use:   "remove <droid> <extension>",
	Short: "Remove an installed extension",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := apiClient()
		if err != nil {
			return err
		}
		if err := client.RemoveExtension(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Extension %s removed from %s\n", args[1], args[0])
		return nil
	},
}

func init() {
	extensionsCmd.AddCommand(extensionsListCmd, extensionsInstallCmd, extensionsRemoveCmd)
	rootCmd.AddCommand(extensionsCmd)
}
