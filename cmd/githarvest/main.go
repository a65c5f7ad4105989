// Package main provides the entry point for the githarvest CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/githarvest/cmd/githarvest/commands"
	"github.com/Sumatoshi-tech/githarvest/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "githarvest",
		Short: "Extract git commit history into columnar-ready JSON",
		Long: `Githarvest mines the commit history of local git repositories and writes
one JSON record per commit, with per-file line-change statistics, suitable
for bulk loading into a columnar analytic store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewExtractCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "githarvest %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
