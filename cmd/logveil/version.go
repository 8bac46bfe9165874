package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/logveil/logveil/internal/version"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Printf("logveil %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	})
}
