package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var droidsCmd = &cobra.Command{
	Use:   "droids",
	Short: "Manage the droids of a running gynoid",
}

var droidsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List droids and their state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := apiClient()
		if err != nil {
			return err
		}
		droids, err := client.Droids(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(droids)
		}
		if len(droids) == 0 {
			fmt.Println("No droids registered.")
			return nil
		}
		for _, d := range droids {
			state := "offline"
			switch {
			case d.Connected:
				state = "online"
			case d.Live:
				state = "disconnected"
			}
			fmt.Printf("%-20s %-12s %d extension(s)\n", d.Name, state, len(d.Extensions))
		}
		return nil
	},
}

var droidsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a droid and connect it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, _ := cmd.Flags().GetString("token")
		client, err := apiClient()
		if err != nil {
			return err
		}
		if err := client.StartDroid(cmd.Context(), args[0], token); err != nil {
			return err
		}
		fmt.Printf("Droid %s successfully registered\n", args[0])
		return nil
	},
}

var droidsRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Disconnect a droid and delete it from the registry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := apiClient()
		if err != nil {
			return err
		}
		if err := client.RemoveDroid(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Droid %s removed\n", args[0])
		return nil
	},
}

var droidsReloadCmd = &cobra.Command{
	Use:   "reload <name>",
	Short: "Reload a droid's extensions and keys",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := apiClient()
		if err != nil {
			return err
		}
		if err := client.ReloadDroid(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Droid %s successfully reloaded\n", args[0])
		return nil
	},
}

var droidsDisconnectCmd = &cobra.Command{
	Use:   "disconnect <name>",
	Short: "Close a droid's Slack connection without removing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := apiClient()
		if err != nil {
			return err
		}
		if err := client.DisconnectDroid(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Droid %s disconnected\n", args[0])
		return nil
	},
}

func init() {
	droidsListCmd.Flags().Bool("json", false, "output as JSON")
	droidsAddCmd.Flags().String("token", "", "Slack bot token")
	_ = droidsAddCmd.MarkFlagRequired("token")

	droidsCmd.AddCommand(droidsListCmd, droidsAddCmd, droidsRemoveCmd, droidsReloadCmd, droidsDisconnectCmd)
	rootCmd.AddCommand(droidsCmd)
}
