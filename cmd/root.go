package cmd

import (
	"os"

	"timezone-scheduler/core/config"
	"timezone-scheduler/core/logger"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string

	cfg *config.Config
}

// NewRootCommand creates the tz-scheduler command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "tz-scheduler",
		Short: "Timezone-aware appointment slot scheduler",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			level := cfg.Log.Level
			if opts.LogLevel != "" {
				level = opts.LogLevel
			}
			// stdout is reserved for command output
			logger.Init(os.Stderr, level)
			opts.cfg = cfg
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config-file", "c", "", "path to a config file (defaults to $CONFIG_PATH)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override log.level")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewAuditCommand(opts))
	cmd.AddCommand(NewReportCommand(opts))

	return cmd
}

// Execute runs the root command against os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}
