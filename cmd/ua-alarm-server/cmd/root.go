package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/opcua-alarms/internal/config"
	"github.com/oshokin/opcua-alarms/internal/service/server"
	"github.com/oshokin/opcua-alarms/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// stateFile path where condition snapshots are persisted.
	stateFile string
	// metricsAddress overrides the Prometheus listen address.
	metricsAddress string
	// allowMultiple disables the single-instance guard.
	allowMultiple bool

	// rootCmd represents the base command for running the gRPC server.
	rootCmd = &cobra.Command{
		Use:   "ua-alarm-server [listen-address]",
		Short: "Host limit alarms and serve the condition service over gRPC.",
		Long: `Starts the condition server that hosts the configured exclusive limit alarms.

Clients report monitored values, acknowledge, confirm and comment notifications
and watch them live. Every notification is written to the event journal and,
when configured, published to a Redis stream and an MQTT broker.

Only the port from ServerAddress config is used for listening (e.g., :4840).
Listen address can be provided as argument to override config (e.g., :9090, 0.0.0.0:4840).
Condition state is persisted to a JSON file for recovery across restarts.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &server.Options{
				ConfigPath:     configPath,
				ListenAddress:  listenAddress,
				StateFile:      stateFile,
				MetricsAddress: metricsAddress,
				SingleInstance: !allowMultiple,
			}

			return server.Run(ctx, options)
		},
	}
)

// Execute runs the ua-alarm-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().
		StringVarP(&stateFile, "state-file", "s", "", "path to persist condition state (overrides config)")
	rootCmd.Flags().StringVarP(&metricsAddress, "metrics", "m", "", "Prometheus listen address (overrides config)")
	rootCmd.Flags().BoolVar(&allowMultiple, "allow-multiple", false, "allow several server processes on this host")
}
