package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"google.golang.org/protobuf/encoding/protojson"

	"github.com/oshokin/opcua-alarms/internal/codec"
	"github.com/oshokin/opcua-alarms/internal/config"
	"github.com/oshokin/opcua-alarms/internal/domain/alarm"
	"github.com/oshokin/opcua-alarms/internal/domain/event"
	"github.com/oshokin/opcua-alarms/internal/logger"
	"github.com/oshokin/opcua-alarms/internal/repository/journal"
	"github.com/oshokin/opcua-alarms/internal/service/common"
)

// Options configures how the client reaches the condition server.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string

	// ServerAddress overrides server address from config when specified.
	ServerAddress string

	// Output receives command results, stdout when nil.
	Output io.Writer
}

// WorkflowOptions describes an Acknowledge, Confirm or AddComment call.
type WorkflowOptions struct {
	// Name is the condition name.
	Name string
	// EventID is the hex id of the notification acted on; empty uses the outstanding one.
	EventID string
	// Comment is stored in the Comment property.
	Comment string
	// Locale of Comment, may be empty.
	Locale string
}

// errNoOutstandingEvent is returned when a condition has not notified yet.
var errNoOutstandingEvent = errors.New("condition has no outstanding notification")

// session is a connected client with its output.
type session struct {
	client *common.Client
	out    io.Writer
}

// open loads settings and connects to the server.
func open(ctx context.Context, opts *Options) (*session, error) {
	// Load settings from configuration file.
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	// Use server address from options if provided, otherwise use config.
	serverAddress := cfg.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	// Connect to the server with timeout from config.
	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(cfg.Timeout))
	if err != nil {
		return nil, err
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	logger.DebugKV(ctx, "Connected to condition server", "server_address", serverAddress)

	return &session{client: client, out: out}, nil
}

func (s *session) close() {
	_ = s.client.Close()
}

// List prints a summary of every condition.
func List(ctx context.Context, opts *Options) error {
	s, err := open(ctx, opts)
	if err != nil {
		return err
	}

	defer s.close()

	statuses, err := s.client.List(ctx)
	if err != nil {
		return err
	}

	return writeStatuses(s.out, statuses)
}

// Get prints the full status of a condition.
func Get(ctx context.Context, opts *Options, name string) error {
	return withStatus(ctx, opts, func(s *session) (*alarm.Status, error) {
		return s.client.Get(ctx, name)
	})
}

// Enable enables a condition.
func Enable(ctx context.Context, opts *Options, name string) error {
	return withStatus(ctx, opts, func(s *session) (*alarm.Status, error) {
		return s.client.Enable(ctx, name)
	})
}

// Disable disables a condition.
func Disable(ctx context.Context, opts *Options, name string) error {
	return withStatus(ctx, opts, func(s *session) (*alarm.Status, error) {
		return s.client.Disable(ctx, name)
	})
}

// Acknowledge acknowledges a notification as the current system user.
func Acknowledge(ctx context.Context, opts *Options, w *WorkflowOptions) error {
	return workflow(ctx, opts, w, (*common.Client).Acknowledge)
}

// Confirm confirms a notification as the current system user.
func Confirm(ctx context.Context, opts *Options, w *WorkflowOptions) error {
	return workflow(ctx, opts, w, (*common.Client).Confirm)
}

// Comment comments a notification as the current system user.
func Comment(ctx context.Context, opts *Options, w *WorkflowOptions) error {
	return workflow(ctx, opts, w, (*common.Client).AddComment)
}

// Report feeds a monitored value to a limit alarm.
func Report(ctx context.Context, opts *Options, name string, value float64) error {
	s, err := open(ctx, opts)
	if err != nil {
		return err
	}

	defer s.close()

	st, triggered, err := s.client.ReportValue(ctx, name, value)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Value reported", "condition", name, "value", value, "triggered", triggered)

	return writeStatus(s.out, st)
}

// History prints journaled notifications, newest first.
func History(ctx context.Context, opts *Options, q journal.Query) error {
	s, err := open(ctx, opts)
	if err != nil {
		return err
	}

	defer s.close()

	events, err := s.client.History(ctx, q)
	if err != nil {
		return err
	}

	for _, n := range events {
		if _, err := fmt.Fprintln(s.out, formatNotification(n)); err != nil {
			return err
		}
	}

	return nil
}

// Watch prints live notifications until ctx is canceled.
func Watch(ctx context.Context, opts *Options, conditionName, sourceName string) error {
	s, err := open(ctx, opts)
	if err != nil {
		return err
	}

	defer s.close()

	logger.InfoKV(ctx, "Watching notifications", "condition", conditionName, "source", sourceName)

	return s.client.Watch(ctx, conditionName, sourceName, func(n *event.Notification) error {
		_, err := fmt.Fprintln(s.out, formatNotification(n))

		return err
	})
}

// workflowCall is one of the common.Client workflow methods.
type workflowCall func(
	c *common.Client,
	ctx context.Context,
	name string,
	eventID []byte,
	comment event.LocalizedText,
	actor *alarm.Actor,
) (*alarm.Status, error)

func workflow(ctx context.Context, opts *Options, w *WorkflowOptions, call workflowCall) error {
	// Identify current user and hostname for the ClientUserId audit trail.
	actor, err := common.DetectActor()
	if err != nil {
		return err
	}

	return withStatus(ctx, opts, func(s *session) (*alarm.Status, error) {
		var current *alarm.Status

		if w.EventID == "" {
			current, err = s.client.Get(ctx, w.Name)
			if err != nil {
				return nil, err
			}
		}

		eventID, err := resolveEventID(w.EventID, current)
		if err != nil {
			return nil, err
		}

		comment := event.LocalizedText{Locale: w.Locale, Text: w.Comment}

		return call(s.client, ctx, w.Name, eventID, comment, actor)
	})
}

func withStatus(ctx context.Context, opts *Options, fn func(s *session) (*alarm.Status, error)) error {
	s, err := open(ctx, opts)
	if err != nil {
		return err
	}

	defer s.close()

	st, err := fn(s)
	if err != nil {
		return err
	}

	return writeStatus(s.out, st)
}

// resolveEventID parses an explicit hex id or falls back to the outstanding notification of current.
func resolveEventID(hexID string, current *alarm.Status) ([]byte, error) {
	if hexID != "" {
		return codec.DecodeEventID(hexID)
	}

	if current == nil || len(current.EventID) == 0 {
		return nil, errNoOutstandingEvent
	}

	return current.EventID, nil
}

// writeStatus prints a status as indented protojson.
func writeStatus(out io.Writer, st *alarm.Status) error {
	data, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(codec.EncodeStatus(st))
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}

	_, err = fmt.Fprintln(out, string(data))

	return err
}

// writeStatuses prints one summary row per condition.
func writeStatuses(out io.Writer, statuses []*alarm.Status) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0) //nolint:mnd // Column padding.

	fmt.Fprintln(w, "NAME\tSOURCE\tENABLED\tACTIVE\tBAND\tSEVERITY\tACKED\tCONFIRMED\tRETAIN\tVALUE")

	for _, st := range statuses {
		band := st.LimitState
		if band == "" {
			band = "-"
		}

		fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%s\t%d\t%t\t%t\t%t\t%g\n",
			st.Name,
			st.SourceName,
			st.Enabled,
			st.Active,
			band,
			st.Severity,
			st.Acked,
			st.Confirmed,
			st.Retain,
			st.Value,
		)
	}

	return w.Flush()
}

// formatNotification renders a notification on one line.
func formatNotification(n *event.Notification) string {
	name, _ := n.Field(alarm.FieldConditionName).(string)
	if name == "" {
		name = "-"
	}

	return fmt.Sprintf("%s  %4d  %s/%s  %s  [%s]",
		n.Time.Local().Format(time.DateTime),
		n.Severity,
		n.SourceName,
		name,
		n.Message.Text,
		codec.EncodeEventID(n.EventID),
	)
}
