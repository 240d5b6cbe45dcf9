// Command plado watches remote resources and runs jobs when they change.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/plado/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	monitor     bool
	showConfig  bool
	showEnv     bool
	metricsAddr string
}

func newRootCmd() *cobra.Command {
	var opts rootOptions
	cmd := &cobra.Command{
		Use:   "plado",
		Short: "Poll remote resources and run jobs when they change",
		Long: `plado polls pull requests, work items, branches and pipelines on a schedule,
compares every sample with the last one it saw and runs the configured jobs
for each create, update or state change it detects.

Without --monitor it prints a summary of the configured event definitions.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch {
			case opts.showConfig:
				printSchemas(out)
				return nil
			case opts.showEnv:
				printEnv(out)
				return nil
			}

			path, err := config.ResolvePath(cmd.Flags())
			if err != nil {
				return err
			}
			if opts.monitor {
				return runMonitor(cmd.Context(), path, opts.metricsAddr)
			}
			return printSummary(out, path)
		},
	}
	cmd.Flags().StringP(config.FlagConfig, "c", "", "path to the config file (default $"+config.EnvConfig+" or ~/.plado_config.json)")
	cmd.Flags().BoolVarP(&opts.monitor, "monitor", "m", false, "run the monitoring daemon")
	cmd.Flags().BoolVar(&opts.showConfig, "show-config", false, "print every configuration key and exit")
	cmd.Flags().BoolVar(&opts.showEnv, "show-env", false, "print the environment variables plado reads and sets")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "listen address for status and metrics (overrides metrics_addr)")
	cmd.MarkFlagsMutuallyExclusive("monitor", "show-config", "show-env")
	return cmd
}
