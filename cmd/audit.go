package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"timezone-scheduler/core/server"
	"timezone-scheduler/modules/scheduler"

	"github.com/spf13/cobra"
)

// NewAuditCommand groups the read-only consistency checks.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Check slots and appointments for inconsistencies",
	}
	cmd.AddCommand(newAuditSlotsCommand(rootOpts))
	cmd.AddCommand(newAuditAppointmentsCommand(rootOpts))
	return cmd
}

func newAuditSlotsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "slots",
		Short: "Classify every slot of every configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withScheduler(cmd.Context(), rootOpts, func(ctx context.Context, c *scheduler.Components) error {
				rows, appErr := c.Audit.AuditSlots(ctx)
				if appErr != nil {
					return appErr
				}
				return writeJSON(cmd.OutOrStdout(), rows)
			})
		},
	}
}

func newAuditAppointmentsCommand(rootOpts *RootOptions) *cobra.Command {
	var configKey string
	cmd := &cobra.Command{
		Use:   "appointments",
		Short: "Check every record's appointment for one config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withScheduler(cmd.Context(), rootOpts, func(ctx context.Context, c *scheduler.Components) error {
				rows, appErr := c.Audit.AuditAppointments(ctx, configKey)
				if appErr != nil {
					return appErr
				}
				return writeJSON(cmd.OutOrStdout(), rows)
			})
		},
	}
	cmd.Flags().StringVar(&configKey, "config", "", "config key (<slot-id-field>|<event-id>)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

// withScheduler opens the backends, wires the scheduler without HTTP and runs fn.
func withScheduler(ctx context.Context, rootOpts *RootOptions, fn func(context.Context, *scheduler.Components) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	deps, err := server.Open(ctx, rootOpts.cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	components, err := scheduler.Build(deps.DB, deps.Locker, rootOpts.cfg, nil)
	if err != nil {
		return err
	}
	return fn(ctx, components)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
