package events

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

// Client forwards events to a remote EventSink. It implements reporter.Sink.
type Client struct {
	conn        *grpc.ClientConn
	callTimeout time.Duration
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

// WithDialOptions appends gRPC dial options.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *Client) {
		c.dialOptions = append(c.dialOptions, opts...)
	}
}

// Dial creates a forwarding client for the sink at address.
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
		return nil, fmt.Errorf("dial event sink: %w", err)
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

// Send implements reporter.Sink.
func (c *Client) Send(ctx context.Context, event *domain.Event) error {
	req, err := ToStruct(event)
	if err != nil {
		return err
	}

	callCtx := ctx

	if c.callTimeout > 0 {
		var cancel context.CancelFunc

		callCtx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	if err = c.conn.Invoke(callCtx, SendMethod, req, new(emptypb.Empty)); err != nil {
		return fmt.Errorf("forward event %s: %w", event.ID, err)
	}

	return nil
}
