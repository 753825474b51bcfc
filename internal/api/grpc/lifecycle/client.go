package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/config"
	domain "github.com/dino2gnt/opennms-shellexecutor-plugin/internal/domain/alarm"
	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/version"
)

// errAddressRequired is returned when a required address value is missing.
var errAddressRequired = errors.New("address must be provided")

// Client sends lifecycle callbacks to a shellexec daemon.
type Client struct {
	// conn is the underlying gRPC connection.
	conn *grpc.ClientConn
	// executor addresses a single instance; empty fans out to all.
	executor string
	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
	// dialOptions are appended to the defaults.
	dialOptions []grpc.DialOption
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

// WithExecutor addresses every call to the named executor instance.
func WithExecutor(pid string) Option {
	return func(c *Client) {
		c.executor = pid
	}
}

// WithDialOptions appends gRPC dial options, for example a custom dialer.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *Client) {
		c.dialOptions = append(c.dialOptions, opts...)
	}
}

// Dial creates a client for the daemon at address.
// Transport is insecure; deploy on a trusted network or terminate TLS in a proxy.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	client := &Client{
		callTimeout: config.DefaultCallTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	dialOptions := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUserAgent(version.UserAgent()),
	}, client.dialOptions...)

	conn, err := grpc.NewClient(address, dialOptions...)
	if err != nil {
		return nil, fmt.Errorf("dial lifecycle server: %w", err)
	}

	client.conn = conn

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// Snapshot sends the full set of current alarms.
func (c *Client) Snapshot(ctx context.Context, alarms []*domain.Alarm) error {
	req, err := snapshotRequest(c.executor, alarms)
	if err != nil {
		return err
	}

	return c.invoke(ctx, SnapshotMethod, req)
}

// NewOrUpdated sends a new or changed alarm.
func (c *Client) NewOrUpdated(ctx context.Context, a *domain.Alarm) error {
	req, err := newOrUpdatedRequest(c.executor, a)
	if err != nil {
		return err
	}

	return c.invoke(ctx, NewOrUpdatedMethod, req)
}

// Deleted sends an alarm removal.
func (c *Client) Deleted(ctx context.Context, id int, reductionKey string) error {
	return c.invoke(ctx, DeletedMethod, deletedRequest(c.executor, id, reductionKey))
}

func (c *Client) invoke(ctx context.Context, method string, req any) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if err := c.conn.Invoke(callCtx, method, req, new(emptypb.Empty)); err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}

	return nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
