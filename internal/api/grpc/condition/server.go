package condition

import (
	"context"
	"errors"
	"math"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/opcua-alarms/internal/codec"
	"github.com/oshokin/opcua-alarms/internal/dispatch"
	"github.com/oshokin/opcua-alarms/internal/domain/alarm"
	"github.com/oshokin/opcua-alarms/internal/domain/event"
	"github.com/oshokin/opcua-alarms/internal/logger"
	pb "github.com/oshokin/opcua-alarms/internal/pb/v1"
	"github.com/oshokin/opcua-alarms/internal/repository/journal"
)

// Service abstracts the business operations the transport layer depends on.
type Service interface {
	List(ctx context.Context) []*alarm.Status
	Get(ctx context.Context, name string) (*alarm.Status, error)
	Acknowledge(
		ctx context.Context,
		name string,
		eventID []byte,
		comment event.LocalizedText,
		actor *alarm.Actor,
	) (*alarm.Status, error)
	Confirm(
		ctx context.Context,
		name string,
		eventID []byte,
		comment event.LocalizedText,
		actor *alarm.Actor,
	) (*alarm.Status, error)
	AddComment(
		ctx context.Context,
		name string,
		eventID []byte,
		comment event.LocalizedText,
		actor *alarm.Actor,
	) (*alarm.Status, error)
	Enable(ctx context.Context, name string) (*alarm.Status, error)
	Disable(ctx context.Context, name string) (*alarm.Status, error)
	ReportValue(ctx context.Context, name string, value float64) (*alarm.Status, bool, error)
	History(ctx context.Context, q journal.Query) ([]*event.Notification, error)
	Subscribe(conditionName, sourceName string) (*dispatch.Subscription, error)
}

// Server implements the ConditionService gRPC API.
type Server struct {
	pb.UnimplementedConditionServiceServer

	// service provides the condition operations.
	service Service
}

// workflowRequest is a parsed Acknowledge, Confirm or AddComment request.
type workflowRequest struct {
	name    string
	eventID []byte
	comment event.LocalizedText
	actor   *alarm.Actor
}

// workflowMethod is a Service method taking a workflowRequest.
type workflowMethod func(
	ctx context.Context,
	name string,
	eventID []byte,
	comment event.LocalizedText,
	actor *alarm.Actor,
) (*alarm.Status, error)

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// ListConditions returns the status of every hosted condition.
func (s *Server) ListConditions(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	statuses := s.service.List(ctx)

	values := make([]*structpb.Value, 0, len(statuses))
	for _, st := range statuses {
		values = append(values, structpb.NewStructValue(codec.EncodeStatus(st)))
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		pb.KeyConditions: structpb.NewListValue(&structpb.ListValue{Values: values}),
	}}, nil
}

// GetCondition returns the status of one condition.
func (s *Server) GetCondition(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name, err := requireName(req)
	if err != nil {
		return nil, err
	}

	st, err := s.service.Get(ctx, name)
	if err != nil {
		return nil, toStatusError(ctx, err)
	}

	return codec.EncodeStatus(st), nil
}

// Acknowledge acknowledges the outstanding notification of a condition.
func (s *Server) Acknowledge(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.workflow(ctx, req, s.service.Acknowledge)
}

// Confirm confirms the outstanding notification of a condition.
func (s *Server) Confirm(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.workflow(ctx, req, s.service.Confirm)
}

// AddComment comments the outstanding notification of a condition.
func (s *Server) AddComment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.workflow(ctx, req, s.service.AddComment)
}

// Enable enables a condition.
func (s *Server) Enable(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name, err := requireName(req)
	if err != nil {
		return nil, err
	}

	st, err := s.service.Enable(ctx, name)
	if err != nil {
		return nil, toStatusError(ctx, err)
	}

	return codec.EncodeStatus(st), nil
}

// Disable disables a condition.
func (s *Server) Disable(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name, err := requireName(req)
	if err != nil {
		return nil, err
	}

	st, err := s.service.Disable(ctx, name)
	if err != nil {
		return nil, toStatusError(ctx, err)
	}

	return codec.EncodeStatus(st), nil
}

// ReportValue feeds a monitored value to a limit alarm.
func (s *Server) ReportValue(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name, err := requireName(req)
	if err != nil {
		return nil, err
	}

	value, ok := req.GetFields()[pb.KeyValue].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "numeric value is required")
	}

	if math.IsNaN(value.NumberValue) || math.IsInf(value.NumberValue, 0) {
		return nil, status.Error(codes.InvalidArgument, alarm.ErrInvalidValue.Error())
	}

	st, triggered, err := s.service.ReportValue(ctx, name, value.NumberValue)
	if err != nil {
		return nil, toStatusError(ctx, err)
	}

	response := codec.EncodeStatus(st)
	response.Fields[pb.KeyTriggered] = structpb.NewBoolValue(triggered)

	return response, nil
}

// History returns journaled notifications, newest first.
func (s *Server) History(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	q := journal.Query{
		SourceName:    stringField(req, pb.KeySourceName),
		ConditionName: stringField(req, pb.KeyName),
		Limit:         int(req.GetFields()[pb.KeyLimit].GetNumberValue()),
	}

	if q.Limit < 0 {
		return nil, status.Error(codes.InvalidArgument, "limit must not be negative")
	}

	if since := stringField(req, pb.KeySince); since != "" {
		t, err := time.Parse(time.RFC3339Nano, since)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "since must be an RFC 3339 timestamp")
		}

		q.Since = t
	}

	notifications, err := s.service.History(ctx, q)
	if err != nil {
		return nil, toStatusError(ctx, err)
	}

	values := make([]*structpb.Value, 0, len(notifications))

	for _, n := range notifications {
		encoded, err := codec.Encode(n)
		if err != nil {
			return nil, toStatusError(ctx, err)
		}

		values = append(values, structpb.NewStructValue(encoded))
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		pb.KeyEvents: structpb.NewListValue(&structpb.ListValue{Values: values}),
	}}, nil
}

// Subscribe streams live notifications until the client goes away.
func (s *Server) Subscribe(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := stream.Context()

	sub, err := s.service.Subscribe(stringField(req, pb.KeyName), stringField(req, pb.KeySourceName))
	if err != nil {
		return status.Error(codes.Unavailable, err.Error())
	}

	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-sub.C():
			if !ok {
				return nil
			}

			msg, err := codec.Encode(n)
			if err != nil {
				logger.WarnKV(ctx, "Skipping notification", "event_id", codec.EncodeEventID(n.EventID), "error", err)

				continue
			}

			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

// workflow runs one of the Acknowledge, Confirm or AddComment methods.
func (s *Server) workflow(ctx context.Context, req *structpb.Struct, method workflowMethod) (*structpb.Struct, error) {
	r, err := parseWorkflow(req)
	if err != nil {
		return nil, err
	}

	st, err := method(ctx, r.name, r.eventID, r.comment, r.actor)
	if err != nil {
		return nil, toStatusError(ctx, err)
	}

	return codec.EncodeStatus(st), nil
}

func parseWorkflow(req *structpb.Struct) (*workflowRequest, error) {
	name, err := requireName(req)
	if err != nil {
		return nil, err
	}

	actor := toDomainActor(req.GetFields()[pb.KeyActor].GetStructValue())
	if actor == nil {
		return nil, status.Error(codes.InvalidArgument, "actor is required")
	}

	eventID, err := codec.DecodeEventID(stringField(req, pb.KeyEventID))
	if err != nil || len(eventID) == 0 {
		return nil, status.Error(codes.InvalidArgument, "hex event id is required")
	}

	return &workflowRequest{
		name:    name,
		eventID: eventID,
		comment: event.LocalizedText{
			Locale: stringField(req, pb.KeyLocale),
			Text:   stringField(req, pb.KeyComment),
		},
		actor: actor,
	}, nil
}

func requireName(req *structpb.Struct) (string, error) {
	name := stringField(req, pb.KeyName)
	if name == "" {
		return "", status.Error(codes.InvalidArgument, "condition name is required")
	}

	return name, nil
}

// toDomainActor converts an actor document to a domain Actor.
func toDomainActor(actor *structpb.Struct) *alarm.Actor {
	if actor == nil {
		return nil
	}

	result := &alarm.Actor{
		Hostname: stringField(actor, pb.KeyActorHostname),
		Username: stringField(actor, pb.KeyActorUsername),
	}

	if result.Hostname == "" && result.Username == "" {
		return nil
	}

	return result
}

func stringField(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

// toStatusError maps service errors to gRPC status codes.
func toStatusError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, alarm.ErrUnknownCondition):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, alarm.ErrInvalidEventID),
		errors.Is(err, alarm.ErrInvalidValue),
		errors.Is(err, event.ErrInvalidSeverity):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, alarm.ErrConditionDisabled),
		errors.Is(err, alarm.ErrAlreadyEnabled),
		errors.Is(err, alarm.ErrAlreadyDisabled),
		errors.Is(err, alarm.ErrAlreadyAcknowledged),
		errors.Is(err, alarm.ErrNotAcknowledged),
		errors.Is(err, alarm.ErrConfirmNotAllowed),
		errors.Is(err, alarm.ErrAlreadyConfirmed):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		logger.Errorf(ctx, "Condition service failed: %v", err)

		return status.Error(codes.Internal, "unable to process request")
	}
}
