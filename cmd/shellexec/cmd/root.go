package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/config"
	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/logger"
	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/service/executor"
	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel overrides the configured log level.
	logLevel string

	// rootCmd represents the base command running the executor daemon.
	rootCmd = &cobra.Command{
		Use:   "shellexec [listen-address]",
		Short: "Run shell commands in response to alarm lifecycle changes.",
		Long: `Starts the shell executor daemon.

Alarm lifecycle callbacks arrive over gRPC. Each configured executor filters alarms with its
expression, waits out the hold-down delay for new problems and runs its command with the alarm
exported as environment variables. Acknowledging, clearing or deleting an alarm inside the
hold-down window cancels the pending command instead.

Every execution is reported as an executionSuccessful or executionFailed event, logged and
optionally forwarded to a remote event sink.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()
			defer logger.Sync()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			return executor.Run(ctx, &executor.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				LogLevel:      logLevel,
			})
		},
	}
)

// Execute runs the shellexec CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(newEvalCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "log level override (debug, info, warn, error)")
}
