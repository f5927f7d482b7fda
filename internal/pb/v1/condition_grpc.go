package v1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified name of the condition service.
const ServiceName = "ua.alarm.v1.ConditionService"

// Full method names of the condition service.
const (
	ConditionService_ListConditions_FullMethodName = "/" + ServiceName + "/ListConditions"
	ConditionService_GetCondition_FullMethodName   = "/" + ServiceName + "/GetCondition"
	ConditionService_Acknowledge_FullMethodName    = "/" + ServiceName + "/Acknowledge"
	ConditionService_Confirm_FullMethodName        = "/" + ServiceName + "/Confirm"
	ConditionService_AddComment_FullMethodName     = "/" + ServiceName + "/AddComment"
	ConditionService_Enable_FullMethodName         = "/" + ServiceName + "/Enable"
	ConditionService_Disable_FullMethodName        = "/" + ServiceName + "/Disable"
	ConditionService_ReportValue_FullMethodName    = "/" + ServiceName + "/ReportValue"
	ConditionService_History_FullMethodName        = "/" + ServiceName + "/History"
	ConditionService_Subscribe_FullMethodName      = "/" + ServiceName + "/Subscribe"
)

// ConditionServiceClient is the client API for the condition service.
type ConditionServiceClient interface {
	ListConditions(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetCondition(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Acknowledge(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Confirm(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	AddComment(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Enable(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Disable(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ReportValue(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	History(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Subscribe(
		ctx context.Context,
		in *structpb.Struct,
		opts ...grpc.CallOption,
	) (grpc.ServerStreamingClient[structpb.Struct], error)
}

type conditionServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewConditionServiceClient creates a client on top of a connection.
//
//nolint:ireturn // Mirrors generated gRPC constructors.
func NewConditionServiceClient(cc grpc.ClientConnInterface) ConditionServiceClient {
	return &conditionServiceClient{cc}
}

func (c *conditionServiceClient) invoke(
	ctx context.Context,
	method string,
	in *structpb.Struct,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *conditionServiceClient) ListConditions(
	ctx context.Context,
	in *structpb.Struct,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, ConditionService_ListConditions_FullMethodName, in, opts...)
}

func (c *conditionServiceClient) GetCondition(
	ctx context.Context,
	in *structpb.Struct,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, ConditionService_GetCondition_FullMethodName, in, opts...)
}

func (c *conditionServiceClient) Acknowledge(
	ctx context.Context,
	in *structpb.Struct,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, ConditionService_Acknowledge_FullMethodName, in, opts...)
}

func (c *conditionServiceClient) Confirm(
	ctx context.Context,
	in *structpb.Struct,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, ConditionService_Confirm_FullMethodName, in, opts...)
}

func (c *conditionServiceClient) AddComment(
	ctx context.Context,
	in *structpb.Struct,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, ConditionService_AddComment_FullMethodName, in, opts...)
}

func (c *conditionServiceClient) Enable(
	ctx context.Context,
	in *structpb.Struct,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, ConditionService_Enable_FullMethodName, in, opts...)
}

func (c *conditionServiceClient) Disable(
	ctx context.Context,
	in *structpb.Struct,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, ConditionService_Disable_FullMethodName, in, opts...)
}

func (c *conditionServiceClient) ReportValue(
	ctx context.Context,
	in *structpb.Struct,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, ConditionService_ReportValue_FullMethodName, in, opts...)
}

func (c *conditionServiceClient) History(
	ctx context.Context,
	in *structpb.Struct,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, ConditionService_History_FullMethodName, in, opts...)
}

func (c *conditionServiceClient) Subscribe(
	ctx context.Context,
	in *structpb.Struct,
	opts ...grpc.CallOption,
) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &ConditionService_ServiceDesc.Streams[0], ConditionService_Subscribe_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}

	x := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}
	if err := x.SendMsg(in); err != nil {
		return nil, err
	}

	if err := x.CloseSend(); err != nil {
		return nil, err
	}

	return x, nil
}

// ConditionServiceServer is the server API for the condition service.
// Implementations must embed UnimplementedConditionServiceServer.
type ConditionServiceServer interface {
	ListConditions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	GetCondition(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Acknowledge(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Confirm(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	AddComment(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Enable(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Disable(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ReportValue(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	History(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Subscribe(in *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error
	mustEmbedUnimplementedConditionServiceServer()
}

// UnimplementedConditionServiceServer answers Unimplemented for every method.
type UnimplementedConditionServiceServer struct{}

func (UnimplementedConditionServiceServer) ListConditions(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ListConditions not implemented")
}

func (UnimplementedConditionServiceServer) GetCondition(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetCondition not implemented")
}

func (UnimplementedConditionServiceServer) Acknowledge(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Acknowledge not implemented")
}

func (UnimplementedConditionServiceServer) Confirm(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Confirm not implemented")
}

func (UnimplementedConditionServiceServer) AddComment(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method AddComment not implemented")
}

func (UnimplementedConditionServiceServer) Enable(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Enable not implemented")
}

func (UnimplementedConditionServiceServer) Disable(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Disable not implemented")
}

func (UnimplementedConditionServiceServer) ReportValue(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ReportValue not implemented")
}

func (UnimplementedConditionServiceServer) History(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method History not implemented")
}

func (UnimplementedConditionServiceServer) Subscribe(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error {
	return status.Error(codes.Unimplemented, "method Subscribe not implemented")
}

func (UnimplementedConditionServiceServer) mustEmbedUnimplementedConditionServiceServer() {}

// RegisterConditionServiceServer registers the implementation on a gRPC server.
func RegisterConditionServiceServer(s grpc.ServiceRegistrar, srv ConditionServiceServer) {
	s.RegisterService(&ConditionService_ServiceDesc, srv)
}

// unaryMethod is a ConditionServiceServer method taking and returning a Struct.
type unaryMethod func(srv ConditionServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

// unaryHandler adapts a unary method to grpc.MethodHandler.
func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}

		server, _ := srv.(ConditionServiceServer)

		if interceptor == nil {
			return call(server, ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}

		handler := func(ctx context.Context, req any) (any, error) {
			request, _ := req.(*structpb.Struct)

			return call(server, ctx, request)
		}

		return interceptor(ctx, in, info, handler)
	}
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}

	server, _ := srv.(ConditionServiceServer)

	return server.Subscribe(in, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

// ConditionService_ServiceDesc describes the condition service for grpc.Server.
//
//nolint:gochecknoglobals // Service descriptors are package-level by convention.
var ConditionService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ConditionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ListConditions",
			Handler:    unaryHandler(ConditionService_ListConditions_FullMethodName, ConditionServiceServer.ListConditions),
		},
		{
			MethodName: "GetCondition",
			Handler:    unaryHandler(ConditionService_GetCondition_FullMethodName, ConditionServiceServer.GetCondition),
		},
		{
			MethodName: "Acknowledge",
			Handler:    unaryHandler(ConditionService_Acknowledge_FullMethodName, ConditionServiceServer.Acknowledge),
		},
		{
			MethodName: "Confirm",
			Handler:    unaryHandler(ConditionService_Confirm_FullMethodName, ConditionServiceServer.Confirm),
		},
		{
			MethodName: "AddComment",
			Handler:    unaryHandler(ConditionService_AddComment_FullMethodName, ConditionServiceServer.AddComment),
		},
		{
			MethodName: "Enable",
			Handler:    unaryHandler(ConditionService_Enable_FullMethodName, ConditionServiceServer.Enable),
		},
		{
			MethodName: "Disable",
			Handler:    unaryHandler(ConditionService_Disable_FullMethodName, ConditionServiceServer.Disable),
		},
		{
			MethodName: "ReportValue",
			Handler:    unaryHandler(ConditionService_ReportValue_FullMethodName, ConditionServiceServer.ReportValue),
		},
		{
			MethodName: "History",
			Handler:    unaryHandler(ConditionService_History_FullMethodName, ConditionServiceServer.History),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "ua/alarm/v1/condition.proto",
}
