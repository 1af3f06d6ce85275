// Command jacobine is the CLI dispatcher: one root command
// with a producer subcommand and a consumer subcommand, wiring the
// database gateway, queue client, process runner, and HTTP fetcher into
// whichever component the subcommand needs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var metricsAddr string

	root := &cobra.Command{
		Use:           "jacobine",
		Short:         "Distributed analysis pipeline orchestrator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML configuration file")
	root.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address the Prometheus /metrics endpoint listens on")

	root.AddCommand(newProducerCmd(&configPath, &metricsAddr))
	root.AddCommand(newConsumerCmd(&configPath, &metricsAddr))

	return root
}
