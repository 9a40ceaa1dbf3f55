package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fieldsync",
	Short: "Offline-first beneficiary registration with background sync",
	Long: `fieldsync keeps beneficiary records in an on-device store and pushes them
to the remote document tree whenever the network allows.

Every form submission is written locally first. Records that cannot reach
the remote store are queued and replayed by a periodic reconcile job.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env is fine; the environment may already be set.
		godotenv.Load()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
