package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/gynoid/internal/config"
)

var (
	cfgFile   string
	verbose   bool
	serverURL string
)

var rootCmd = &cobra.Command{
	Use:   "gynoid",
	Short: "Run and manage a fleet of Slack droids",
	Long: `gynoid runs a fleet of chat-bot droids. Each droid holds one Slack
connection and a set of extensions installed from git repositories.
The fleet is managed from chat through the management droid, over the
HTTP admin API, or with the commands below.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "admin API of a running gynoid (default http://localhost:<port>)")
}
