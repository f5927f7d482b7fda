package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/opcua-alarms/internal/config"
	"github.com/oshokin/opcua-alarms/internal/repository/journal"
	"github.com/oshokin/opcua-alarms/internal/service/client"
	"github.com/oshokin/opcua-alarms/internal/version"
)

var (
	// options are shared by every subcommand.
	options client.Options

	// workflow holds the Acknowledge, Confirm and AddComment flags.
	workflow client.WorkflowOptions

	// historyQuery holds the history flags.
	historyQuery journal.Query
	// historySince is parsed into historyQuery.Since.
	historySince time.Duration

	// watchSource filters watched notifications by source.
	watchSource string

	// rootCmd groups the client subcommands.
	rootCmd = &cobra.Command{
		Use:   "ua-alarm-client",
		Short: "Operate the conditions hosted by ua-alarm-server.",
		Long: `Lists conditions, reports monitored values, acknowledges, confirms and
comments notifications and watches them live.

Acknowledge, confirm and comment record the current user and hostname in the
ClientUserId property. Without --event-id they act on the outstanding notification.`,
		SilenceUsage: true,
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List conditions with their state.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return client.List(cmd.Context(), &options)
		},
	}

	getCmd = &cobra.Command{
		Use:   "get <condition>",
		Short: "Print the full status of a condition.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.Get(cmd.Context(), &options, args[0])
		},
	}

	ackCmd = &cobra.Command{
		Use:   "ack <condition>",
		Short: "Acknowledge a notification.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.Acknowledge(cmd.Context(), &options, withName(args[0]))
		},
	}

	confirmCmd = &cobra.Command{
		Use:   "confirm <condition>",
		Short: "Confirm an acknowledged notification.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.Confirm(cmd.Context(), &options, withName(args[0]))
		},
	}

	commentCmd = &cobra.Command{
		Use:   "comment <condition>",
		Short: "Comment a notification.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.Comment(cmd.Context(), &options, withName(args[0]))
		},
	}

	enableCmd = &cobra.Command{
		Use:   "enable <condition>",
		Short: "Enable a condition.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.Enable(cmd.Context(), &options, args[0])
		},
	}

	disableCmd = &cobra.Command{
		Use:   "disable <condition>",
		Short: "Disable a condition.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.Disable(cmd.Context(), &options, args[0])
		},
	}

	reportCmd = &cobra.Command{
		Use:   "report <condition> <value>",
		Short: "Report a monitored value to a limit alarm.",
		Args:  cobra.ExactArgs(2), //nolint:mnd // Condition and value.
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("parse value %q: %w", args[1], err)
			}

			return client.Report(cmd.Context(), &options, args[0], value)
		},
	}

	historyCmd = &cobra.Command{
		Use:   "history [condition]",
		Short: "Print journaled notifications, newest first.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := historyQuery
			if len(args) > 0 {
				q.ConditionName = args[0]
			}

			if historySince > 0 {
				q.Since = time.Now().Add(-historySince)
			}

			return client.History(cmd.Context(), &options, q)
		},
	}

	watchCmd = &cobra.Command{
		Use:   "watch [condition]",
		Short: "Print notifications as they happen.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			if len(args) > 0 {
				name = args[0]
			}

			return client.Watch(cmd.Context(), &options, name, watchSource)
		},
	}
)

// withName returns the workflow flags for a condition.
func withName(name string) *client.WorkflowOptions {
	w := workflow
	w.Name = name

	return &w
}

// Execute runs the ua-alarm-client CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1) //nolint:gocritic // stop is called above.
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&options.ConfigPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().
		StringVarP(&options.ServerAddress, "server", "a", "", "server address (overrides config)")

	for _, cmd := range []*cobra.Command{ackCmd, confirmCmd, commentCmd} {
		cmd.Flags().StringVarP(&workflow.EventID, "event-id", "e", "", "hex id of the notification, outstanding one when empty")
		cmd.Flags().StringVarP(&workflow.Comment, "comment", "m", "", "comment text")
		cmd.Flags().StringVarP(&workflow.Locale, "locale", "l", "", "locale of the comment, e.g. en-US")
	}

	historyCmd.Flags().StringVar(&historyQuery.SourceName, "source", "", "filter by source name")
	historyCmd.Flags().IntVarP(&historyQuery.Limit, "limit", "n", journal.DefaultLimit, "maximum number of entries")
	historyCmd.Flags().DurationVar(&historySince, "since", 0, "only entries newer than this, e.g. 1h")

	watchCmd.Flags().StringVar(&watchSource, "source", "", "filter by source name")

	rootCmd.AddCommand(
		listCmd,
		getCmd,
		ackCmd,
		confirmCmd,
		commentCmd,
		enableCmd,
		disableCmd,
		reportCmd,
		historyCmd,
		watchCmd,
	)
}
