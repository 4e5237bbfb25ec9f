package cmd

import (
	"context"

	"timezone-scheduler/modules/scheduler"

	"github.com/spf13/cobra"
)

// NewReportCommand builds verification reports and optionally uploads them.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		configKey string
		upload    bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Build a verification report (slots plus appointments)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withScheduler(cmd.Context(), rootOpts, func(ctx context.Context, c *scheduler.Components) error {
				if upload {
					out, appErr := c.Reports.Export(ctx, configKey)
					if appErr != nil {
						return appErr
					}
					return writeJSON(cmd.OutOrStdout(), out)
				}
				rep, appErr := c.Reports.Build(ctx, configKey)
				if appErr != nil {
					return appErr
				}
				return writeJSON(cmd.OutOrStdout(), rep)
			})
		},
	}
	cmd.Flags().StringVar(&configKey, "config", "", "limit appointment checks to one config key")
	cmd.Flags().BoolVar(&upload, "upload", false, "upload the report to the configured bucket instead of printing it")
	return cmd
}
