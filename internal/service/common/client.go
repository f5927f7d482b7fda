//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/opcua-alarms/internal/codec"
	"github.com/oshokin/opcua-alarms/internal/config"
	"github.com/oshokin/opcua-alarms/internal/domain/alarm"
	"github.com/oshokin/opcua-alarms/internal/domain/event"
	pb "github.com/oshokin/opcua-alarms/internal/pb/v1"
	"github.com/oshokin/opcua-alarms/internal/repository/journal"
)

// Client wraps the gRPC ConditionService client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the condition server.
	conn *grpc.ClientConn
	// api is the ConditionService client interface.
	api pb.ConditionServiceClient

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errActorRequired is returned when an actor is not provided but is required for the operation.
	errActorRequired = errors.New("actor must be provided")
	// errNameRequired is returned when a condition name is missing.
	errNameRequired = errors.New("condition name must be provided")
	// errValueNotFinite is returned when a reported value is NaN or infinite.
	errValueNotFinite = errors.New("value must be a finite number")
)

// Dial establishes a gRPC connection to the condition server.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy until native TLS is added.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	// Use the non-context NewClient API recommended by grpc-go
	// (DialContext is deprecated as of grpc-go v1.60+).
	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial condition server: %w", err)
	}

	return newClient(conn, pb.NewConditionServiceClient(conn), opts...), nil
}

func newClient(conn *grpc.ClientConn, api pb.ConditionServiceClient, opts ...Option) *Client {
	client := &Client{
		conn:        conn,
		api:         api,
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// List returns the status of every hosted condition.
func (c *Client) List(ctx context.Context) ([]*alarm.Status, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.ListConditions(callCtx, new(structpb.Struct))
	if err != nil {
		return nil, fmt.Errorf("list conditions: %w", err)
	}

	values := resp.GetFields()[pb.KeyConditions].GetListValue().GetValues()
	result := make([]*alarm.Status, 0, len(values))

	for _, v := range values {
		st, err := codec.DecodeStatus(v.GetStructValue())
		if err != nil {
			return nil, fmt.Errorf("decode condition: %w", err)
		}

		result = append(result, st)
	}

	return result, nil
}

// Get returns the status of one condition.
func (c *Client) Get(ctx context.Context, name string) (*alarm.Status, error) {
	return c.byName(ctx, "get condition", name, c.api.GetCondition)
}

// Enable enables a condition.
func (c *Client) Enable(ctx context.Context, name string) (*alarm.Status, error) {
	return c.byName(ctx, "enable condition", name, c.api.Enable)
}

// Disable disables a condition.
func (c *Client) Disable(ctx context.Context, name string) (*alarm.Status, error) {
	return c.byName(ctx, "disable condition", name, c.api.Disable)
}

// Acknowledge acknowledges the notification eventID of a condition.
func (c *Client) Acknowledge(
	ctx context.Context,
	name string,
	eventID []byte,
	comment event.LocalizedText,
	actor *alarm.Actor,
) (*alarm.Status, error) {
	return c.workflow(ctx, "acknowledge", c.api.Acknowledge, name, eventID, comment, actor)
}

// Confirm confirms the notification eventID of a condition.
func (c *Client) Confirm(
	ctx context.Context,
	name string,
	eventID []byte,
	comment event.LocalizedText,
	actor *alarm.Actor,
) (*alarm.Status, error) {
	return c.workflow(ctx, "confirm", c.api.Confirm, name, eventID, comment, actor)
}

// AddComment comments the notification eventID of a condition.
func (c *Client) AddComment(
	ctx context.Context,
	name string,
	eventID []byte,
	comment event.LocalizedText,
	actor *alarm.Actor,
) (*alarm.Status, error) {
	return c.workflow(ctx, "add comment", c.api.AddComment, name, eventID, comment, actor)
}

// ReportValue feeds a monitored value to a limit alarm and reports whether a notification was triggered.
func (c *Client) ReportValue(ctx context.Context, name string, value float64) (*alarm.Status, bool, error) {
	if name == "" {
		return nil, false, errNameRequired
	}

	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, false, fmt.Errorf("report %g: %w", value, errValueNotFinite)
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.ReportValue(callCtx, &structpb.Struct{Fields: map[string]*structpb.Value{
		pb.KeyName:  structpb.NewStringValue(name),
		pb.KeyValue: structpb.NewNumberValue(value),
	}})
	if err != nil {
		return nil, false, fmt.Errorf("report value: %w", err)
	}

	st, err := codec.DecodeStatus(resp)
	if err != nil {
		return nil, false, fmt.Errorf("decode condition: %w", err)
	}

	return st, resp.GetFields()[pb.KeyTriggered].GetBoolValue(), nil
}

// History returns journaled notifications, newest first.
func (c *Client) History(ctx context.Context, q journal.Query) ([]*event.Notification, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.History(callCtx, historyRequest(q))
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	values := resp.GetFields()[pb.KeyEvents].GetListValue().GetValues()
	result := make([]*event.Notification, 0, len(values))

	for _, v := range values {
		n, err := codec.Decode(v.GetStructValue())
		if err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}

		result = append(result, n)
	}

	return result, nil
}

// Watch streams live notifications of the named condition and source to fn
// until ctx is canceled, the server closes the stream or fn fails.
// Empty names match everything. The call timeout does not apply.
func (c *Client) Watch(
	ctx context.Context,
	conditionName, sourceName string,
	fn func(n *event.Notification) error,
) error {
	stream, err := c.api.Subscribe(ctx, &structpb.Struct{Fields: map[string]*structpb.Value{
		pb.KeyName:       structpb.NewStringValue(conditionName),
		pb.KeySourceName: structpb.NewStringValue(sourceName),
	}})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	for {
		msg, err := stream.Recv()

		switch {
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("receive: %w", err)
		}

		n, err := codec.Decode(msg)
		if err != nil {
			return fmt.Errorf("decode event: %w", err)
		}

		if err := fn(n); err != nil {
			return err
		}
	}
}

// unaryCall is a ConditionServiceClient method.
type unaryCall func(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)

func (c *Client) byName(ctx context.Context, operation, name string, call unaryCall) (*alarm.Status, error) {
	if name == "" {
		return nil, errNameRequired
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := call(callCtx, &structpb.Struct{Fields: map[string]*structpb.Value{
		pb.KeyName: structpb.NewStringValue(name),
	}})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	return codec.DecodeStatus(resp)
}

func (c *Client) workflow(
	ctx context.Context,
	operation string,
	call unaryCall,
	name string,
	eventID []byte,
	comment event.LocalizedText,
	actor *alarm.Actor,
) (*alarm.Status, error) {
	if name == "" {
		return nil, errNameRequired
	}

	if actor == nil {
		return nil, errActorRequired
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := call(callCtx, workflowRequest(name, eventID, comment, actor))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	return codec.DecodeStatus(resp)
}

func workflowRequest(name string, eventID []byte, comment event.LocalizedText, actor *alarm.Actor) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		pb.KeyName:    structpb.NewStringValue(name),
		pb.KeyEventID: structpb.NewStringValue(codec.EncodeEventID(eventID)),
		pb.KeyComment: structpb.NewStringValue(comment.Text),
		pb.KeyLocale:  structpb.NewStringValue(comment.Locale),
		pb.KeyActor: structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			pb.KeyActorHostname: structpb.NewStringValue(actor.Hostname),
			pb.KeyActorUsername: structpb.NewStringValue(actor.Username),
		}}),
	}}
}

func historyRequest(q journal.Query) *structpb.Struct {
	fields := map[string]*structpb.Value{
		pb.KeyName:       structpb.NewStringValue(q.ConditionName),
		pb.KeySourceName: structpb.NewStringValue(q.SourceName),
		pb.KeyLimit:      structpb.NewNumberValue(float64(q.Limit)),
	}

	if !q.Since.IsZero() {
		fields[pb.KeySince] = structpb.NewStringValue(q.Since.UTC().Format(time.RFC3339Nano))
	}

	return &structpb.Struct{Fields: fields}
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
