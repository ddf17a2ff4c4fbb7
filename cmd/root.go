package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "skywatch",
	Short: "SkyWatch API gateway",
	Long:  `SkyWatch serves sighting data over HTTP and gRPC behind an API key gateway with per-tier monthly quotas and hourly rate limits.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
