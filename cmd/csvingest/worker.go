package main

import (
	"github.com/spf13/cobra"

	"csvingest/internal/probe"
)

const workerCmdName = "worker"

// newWorkerCmd serves one inference request on stdin/stdout. Logs go to
// stderr, which the parent relays.
func newWorkerCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:    workerCmdName,
		Short:  "Run one schema inference request (internal)",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return probe.ServeWorker(cmd.InOrStdin(), cmd.OutOrStdout(), g.log)
		},
	}
}
