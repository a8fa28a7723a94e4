package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/librarian/internal/version"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		info := version.Get()
		if humanOutput {
			fmt.Println(info.String())
			return nil
		}
		return outputJSON(info)
	},
}
