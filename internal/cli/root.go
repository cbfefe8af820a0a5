package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "semfora",
	Short: "A persistent semantic code intelligence daemon",
	Long: `semfora watches a repository, keeps a layered semantic index of its
symbols and call graph up to date, and answers queries over it through
a long-lived WebSocket connection.

The daemon does the work; this binary only starts it and manages its
on-disk cache.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command, exiting the process with a non-zero
// status on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
