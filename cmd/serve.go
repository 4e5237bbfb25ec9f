package cmd

import (
	"timezone-scheduler/core/server"

	"github.com/spf13/cobra"
)

// NewServeCommand starts the HTTP API.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return server.Run(rootOpts.cfg)
		},
	}
}
