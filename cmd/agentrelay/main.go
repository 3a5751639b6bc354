// Command agentrelay runs a message-routed multi-agent system from a YAML
// configuration file, bridging stdin to the inbound queue and the
// outbound queue to stdout.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "agentrelay",
		Short:         "Message-routed multi-agent runtime",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newRunCmd())

	return cmd
}
