package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage the configuration keys visible to a droid's extensions",
}

var keysListCmd = &cobra.Command{
	Use:   "list <droid>",
	Short: "List key names (values are never shown)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := apiClient()
		if err != nil {
			return err
		}
		keys, err := client.ListKeys(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Println(k)
		}
		return nil
	},
}

var keysSetCmd = &cobra.Command{
	Use:   "set <droid> <key> <value>",
	Short: "Set a key",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := apiClient()
		if err != nil {
			return err
		}
		if err := client.AddKey(cmd.Context(), args[0], args[1], args[2]); err != nil {
			return err
		}
		fmt.Println("Key added")
		return nil
	},
}

var keysUnsetCmd = &cobra.Command{
	Use:   "unset <droid> <key>",
	Short: "Remove a key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := apiClient()
		if err != nil {
			return err
		}
		if err := client.RemoveKey(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Println("Key was removed")
		return nil
	},
}

func init() {
	keysCmd.AddCommand(keysListCmd, keysSetCmd, keysUnsetCmd)
	rootCmd.AddCommand(keysCmd)
}
