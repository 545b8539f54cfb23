// Command caseline runs the realtime messaging and notification hub.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "caseline",
		Short:         "Realtime messaging and notifications for case conversations",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(buildServeCmd(), buildMigrateCmd(), buildTokenCmd(), buildUserCmd())
	return root
}
