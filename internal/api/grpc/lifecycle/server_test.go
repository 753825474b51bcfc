package lifecycle

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/dino2gnt/opennms-shellexecutor-plugin/internal/domain/alarm"
)

var errTestHandler = errors.New("test handler error")

// fakeHandler records every callback it receives.
type fakeHandler struct {
	pid string
	err error

	mu        sync.Mutex
	snapshots [][]*domain.Alarm
	updates   []*domain.Alarm
	deletes   []string
}

func (f *fakeHandler) PID() string { return f.pid }

func (f *fakeHandler) Snapshot(_ context.Context, alarms []*domain.Alarm) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.snapshots = append(f.snapshots, alarms)

	return f.err
}

func (f *fakeHandler) NewOrUpdated(_ context.Context, a *domain.Alarm) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.updates = append(f.updates, a)

	return f.err
}

func (f *fakeHandler) Deleted(_ context.Context, _ int, reductionKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deletes = append(f.deletes, reductionKey)

	return f.err
}

func sampleAlarm() *domain.Alarm {
	return &domain.Alarm{
		ID:           42,
		ReductionKey: "uei.opennms.org/nodes/nodeDown::42",
		Severity:     domain.SeverityMajor,
		Type:         domain.TypeProblem,
		LogMessage:   "Node down",
		Node: &domain.Node{
			Label:       "router-42",
			Categories:  []string{"Routers", "Production"},
			IPAddresses: []string{"10.0.0.42"},
		},
		LastEvent: &domain.LastEvent{
			UEI:        "uei.opennms.org/nodes/nodeDown",
			Parameters: []domain.Parameter{{Name: "reason", Value: "timeout"}},
		},
	}
}

// TestServer_Validation ensures malformed requests are rejected with InvalidArgument or NotFound.
func TestServer_Validation(t *testing.T) {
	t.Parallel()

	s := NewServer(&fakeHandler{pid: "pager"})
	ctx := context.Background()

	_, err := s.NewOrUpdated(ctx, nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.NewOrUpdated(ctx, &structpb.Struct{})
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.Deleted(ctx, deletedRequest("", 1, ""))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.Deleted(ctx, deletedRequest("ticketing", 1, "K1"))
	require.Equal(t, codes.NotFound, status.Code(err))

	bad := &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldAlarm: structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			FieldReductionKey: structpb.NewStringValue("K1"),
			"severity":        structpb.NewStringValue("LOUD"),
		}}),
	}}

	_, err = s.NewOrUpdated(ctx, bad)
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

// TestServer_DeletedRequiresIntegralID rejects missing, fractional and non-numeric ids
// before any handler sees them.
func TestServer_DeletedRequiresIntegralID(t *testing.T) {
	t.Parallel()

	h := &fakeHandler{pid: "pager"}
	s := NewServer(h)

	tests := map[string]*structpb.Value{
		"missing":    nil,
		"fractional": structpb.NewNumberValue(1.5),
		"string":     structpb.NewStringValue("7"),
		"too large":  structpb.NewNumberValue(1e20),
	}

	for name, id := range tests {
		req := deletedRequest("", 1, "K1")
		if id == nil {
			delete(req.Fields, FieldID)
		} else {
			req.Fields[FieldID] = id
		}

		_, err := s.Deleted(context.Background(), req)
		require.Equal(t, codes.InvalidArgument, status.Code(err), name)
	}

	require.Empty(t, h.deletes)

	_, err := s.Deleted(context.Background(), deletedRequest("", 7, "K7"))
	require.NoError(t, err)
	require.Equal(t, []string{"K7"}, h.deletes)
}

// TestServer_Routing delivers to the named executor only, or to all without a name.
func TestServer_Routing(t *testing.T) {
	t.Parallel()

	pager := &fakeHandler{pid: "pager"}
	ticketing := &fakeHandler{pid: "ticketing"}
	s := NewServer(pager, ticketing)
	ctx := context.Background()

	_, err := s.Deleted(ctx, deletedRequest("ticketing", 1, "K1"))
	require.NoError(t, err)
	require.Empty(t, pager.deletes)
	require.Equal(t, []string{"K1"}, ticketing.deletes)

	_, err = s.Deleted(ctx, deletedRequest("", 2, "K2"))
	require.NoError(t, err)
	require.Equal(t, []string{"K2"}, pager.deletes)
	require.Equal(t, []string{"K1", "K2"}, ticketing.deletes)
}

// TestServer_HandlerErrorsBecomeStatus maps callback failures to gRPC codes after calling every target.
func TestServer_HandlerErrorsBecomeStatus(t *testing.T) {
	t.Parallel()

	failing := &fakeHandler{pid: "pager", err: errTestHandler}
	healthy := &fakeHandler{pid: "ticketing"}
	s := NewServer(failing, healthy)

	req, err := newOrUpdatedRequest("", sampleAlarm())
	require.NoError(t, err)

	_, err = s.NewOrUpdated(context.Background(), req)
	require.Equal(t, codes.Internal, status.Code(err))
	require.Contains(t, err.Error(), "executor pager")
	require.Len(t, healthy.updates, 1)

	failing.err = context.DeadlineExceeded

	_, err = s.NewOrUpdated(context.Background(), req)
	require.Equal(t, codes.DeadlineExceeded, status.Code(err))
}

// TestClientServer_Roundtrip exercises the client against a registered server over an in-memory listener.
func TestClientServer_Roundtrip(t *testing.T) {
	t.Parallel()

	lis := bufconn.Listen(1 << 20)
	handler := &fakeHandler{pid: "pager"}

	srv := grpc.NewServer()
	Register(srv, NewServer(handler))

	go func() {
		_ = srv.Serve(lis) //nolint:errcheck // Stopped below.
	}()

	defer srv.Stop()

	client, err := Dial(context.Background(), "passthrough:///bufnet",
		WithCallTimeout(3*time.Second),
		WithExecutor("pager"),
		WithDialOptions(grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		})),
	)
	require.NoError(t, err)

	defer func() {
		_ = client.Close()
	}()

	ctx := context.Background()
	want := sampleAlarm()

	require.NoError(t, client.NewOrUpdated(ctx, want))
	require.NoError(t, client.Snapshot(ctx, []*domain.Alarm{want, want}))
	require.NoError(t, client.Deleted(ctx, want.ID, want.ReductionKey))

	handler.mu.Lock()
	defer handler.mu.Unlock()

	require.Len(t, handler.updates, 1)
	require.Equal(t, want, handler.updates[0])
	require.Len(t, handler.snapshots, 1)
	require.Len(t, handler.snapshots[0], 2)
	require.Equal(t, []string{want.ReductionKey}, handler.deletes)
}

// TestDial_ValidatesAddress verifies that Dial rejects empty addresses.
func TestDial_ValidatesAddress(t *testing.T) {
	t.Parallel()

	c, err := Dial(context.Background(), "")
	require.Error(t, err)
	require.Nil(t, c)
	require.NoError(t, c.Close())
}
