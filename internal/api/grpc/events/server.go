package events

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/service/reporter"
)

// Fully qualified names of the EventSink service.
const (
	ServiceName = "shellexec.v1.EventSink"
	SendMethod  = "/" + ServiceName + "/Send"
)

// EventSinkServer is the server API of the EventSink service.
type EventSinkServer interface {
	Send(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error)
}

// Server receives events and hands them to a local sink.
type Server struct {
	sink reporter.Sink
}

var _ EventSinkServer = (*Server)(nil)

// NewServer returns a receiver forwarding decoded events to sink.
func NewServer(sink reporter.Sink) *Server {
	return &Server{sink: sink}
}

// Register adds the service to a gRPC server.
func Register(registrar grpc.ServiceRegistrar, srv EventSinkServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

// Send decodes and forwards one event.
func (s *Server) Send(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	event, err := FromStruct(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if err = s.sink.Send(ctx, event); err != nil {
		return nil, status.Error(codes.Unavailable, err.Error())
	}

	return &emptypb.Empty{}, nil
}

// ServiceDesc describes the EventSink service for grpc.Server.RegisterService.
//
//nolint:gochecknoglobals // Service descriptors are package-level by gRPC convention.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EventSinkServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Send", Handler: sendHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "shellexec/v1/events.proto",
}

func sendHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}

	server, _ := srv.(EventSinkServer)
	if interceptor == nil {
		return server.Send(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SendMethod,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		typed, _ := req.(*structpb.Struct)

		return server.Send(ctx, typed)
	}

	return interceptor(ctx, in, info, handler)
}
