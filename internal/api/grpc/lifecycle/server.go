package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/dino2gnt/opennms-shellexecutor-plugin/internal/domain/alarm"
	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/logger"
)

// Fully qualified method names of the AlarmLifecycle service.
const (
	ServiceName          = "shellexec.v1.AlarmLifecycle"
	SnapshotMethod       = "/" + ServiceName + "/Snapshot"
	NewOrUpdatedMethod   = "/" + ServiceName + "/NewOrUpdated"
	DeletedMethod        = "/" + ServiceName + "/Deleted"
	snapshotMethodName   = "Snapshot"
	newOrUpdatedName     = "NewOrUpdated"
	deletedMethodName    = "Deleted"
	lifecycleProtoSource = "shellexec/v1/lifecycle.proto"
)

// Handler is an executor instance receiving lifecycle callbacks.
type Handler interface {
	PID() string
	Snapshot(ctx context.Context, alarms []*domain.Alarm) error
	NewOrUpdated(ctx context.Context, a *domain.Alarm) error
	Deleted(ctx context.Context, id int, reductionKey string) error
}

// LifecycleServer is the server API of the AlarmLifecycle service.
type LifecycleServer interface {
	Snapshot(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error)
	NewOrUpdated(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error)
	Deleted(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error)
}

// Server implements LifecycleServer and routes requests to executor instances.
// A request naming an executor goes to that instance only; otherwise it fans out to all.
type Server struct {
	// handlers keeps registration order for fan-out.
	handlers []Handler
	byPID    map[string]Handler
}

var _ LifecycleServer = (*Server)(nil)

// NewServer wires executor instances into a gRPC handler.
func NewServer(handlers ...Handler) *Server {
	s := &Server{
		handlers: handlers,
		byPID:    make(map[string]Handler, len(handlers)),
	}

	for _, h := range handlers {
		s.byPID[h.PID()] = h
	}

	return s
}

// Register adds the service to a gRPC server.
func Register(registrar grpc.ServiceRegistrar, srv LifecycleServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

// Snapshot forwards the current alarm set.
func (s *Server) Snapshot(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	targets, err := s.route(req)
	if err != nil {
		return nil, err
	}

	alarms, err := AlarmsFromList(req.GetFields()[FieldAlarms].GetListValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	return s.dispatch(ctx, targets, func(h Handler) error {
		return h.Snapshot(ctx, alarms)
	})
}

// NewOrUpdated forwards a new or changed alarm.
func (s *Server) NewOrUpdated(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	targets, err := s.route(req)
	if err != nil {
		return nil, err
	}

	a, err := AlarmFromStruct(req.GetFields()[FieldAlarm].GetStructValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	return s.dispatch(ctx, targets, func(h Handler) error {
		return h.NewOrUpdated(ctx, a)
	})
}

// Deleted forwards an alarm removal.
func (s *Server) Deleted(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	targets, err := s.route(req)
	if err != nil {
		return nil, err
	}

	fields := req.GetFields()

	reductionKey := fields[FieldReductionKey].GetStringValue()
	if reductionKey == "" {
		return nil, status.Error(codes.InvalidArgument, ErrReductionKeyMissing.Error())
	}

	id, err := alarmID(fields[FieldID])
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	return s.dispatch(ctx, targets, func(h Handler) error {
		return h.Deleted(ctx, id, reductionKey)
	})
}

// route selects the handlers addressed by the request.
func (s *Server) route(req *structpb.Struct) ([]Handler, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	pid := req.GetFields()[FieldExecutor].GetStringValue()
	if pid == "" {
		return s.handlers, nil
	}

	h, ok := s.byPID[pid]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "executor %q is not configured", pid)
	}

	return []Handler{h}, nil
}

// dispatch calls every target and folds their errors into one status.
func (s *Server) dispatch(ctx context.Context, targets []Handler, call func(Handler) error) (*emptypb.Empty, error) {
	var errs []error

	for _, h := range targets {
		if err := call(h); err != nil {
			logger.WarnKV(ctx, "Lifecycle callback failed", "pid", h.PID(), "error", err)
			errs = append(errs, fmt.Errorf("executor %s: %w", h.PID(), err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, toStatus(err)
	}

	return &emptypb.Empty{}, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// ServiceDesc describes the AlarmLifecycle service for grpc.Server.RegisterService.
//
//nolint:gochecknoglobals // Service descriptors are package-level by gRPC convention.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LifecycleServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: snapshotMethodName, Handler: snapshotHandler},
		{MethodName: newOrUpdatedName, Handler: newOrUpdatedHandler},
		{MethodName: deletedMethodName, Handler: deletedHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: lifecycleProtoSource,
}

type unaryCall func(ctx context.Context, srv LifecycleServer, req *structpb.Struct) (*emptypb.Empty, error)

func unaryHandler(method string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}

		server, _ := srv.(LifecycleServer)
		if interceptor == nil {
			return call(ctx, server, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: method,
		}

		handler := func(ctx context.Context, req any) (any, error) {
			typed, _ := req.(*structpb.Struct)

			return call(ctx, server, typed)
		}

		return interceptor(ctx, in, info, handler)
	}
}

//nolint:gochecknoglobals // Method handlers referenced by ServiceDesc.
var (
	snapshotHandler = unaryHandler(SnapshotMethod,
		func(ctx context.Context, srv LifecycleServer, req *structpb.Struct) (*emptypb.Empty, error) {
			return srv.Snapshot(ctx, req)
		})
	newOrUpdatedHandler = unaryHandler(NewOrUpdatedMethod,
		func(ctx context.Context, srv LifecycleServer, req *structpb.Struct) (*emptypb.Empty, error) {
			return srv.NewOrUpdated(ctx, req)
		})
	deletedHandler = unaryHandler(DeletedMethod,
		func(ctx context.Context, srv LifecycleServer, req *structpb.Struct) (*emptypb.Empty, error) {
			return srv.Deleted(ctx, req)
		})
)
