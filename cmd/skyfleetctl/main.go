// Command skyfleetctl is a thin command-line client for the
// orchestrator's HTTP API: every subcommand issues one request against
// the daemon and prints the JSON response.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	serverAddr  string
	projectName string
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "skyfleetctl",
		Short: "Client for the skyfleet orchestrator daemon",
	}
	root.PersistentFlags().StringVar(&serverAddr, "server", "http://127.0.0.1:8080", "orchestrator API base URL")
	root.PersistentFlags().StringVar(&projectName, "project", "", "project name (required)")
	root.MarkPersistentFlagRequired("project")

	root.AddCommand(newRunCommand())
	root.AddCommand(newPoolCommand())
	return root
}
