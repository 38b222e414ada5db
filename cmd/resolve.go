package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/gynoid/internal/cluster"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <repository>",
	Short: "Show how a repository reference resolves to an extension",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := cluster.ResolveRepository(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Name:         %s\nOrganization: %s\nURL:          %s\n", repo.Name, repo.Organization, repo.URL)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
