//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	api "github.com/oshokin/recorder-launcher/internal/api/grpc/bridge"
	"github.com/oshokin/recorder-launcher/internal/config"
	domain "github.com/oshokin/recorder-launcher/internal/domain/recorder"
)

// Client wraps the gRPC bridge client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the launcher.
	conn *grpc.ClientConn
	// api is the bridge client interface.
	api api.BridgeClient

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
	// actor is sent as request metadata when set.
	actor string
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for unary calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithActor attaches the caller identity to every request.
func WithActor(actor string) Option {
	return func(c *Client) {
		c.actor = actor
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errRecordRequired is returned when a record is not provided but is required for the operation.
	errRecordRequired = errors.New("record must be provided")
)

// Dial establishes a gRPC connection to the launcher's bridge.
// The bridge listens on loopback, so transport credentials are insecure.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial bridge: %w", err)
	}

	client := &Client{
		conn:        conn,
		api:         api.NewBridgeClient(conn),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// LoadPreviousData returns the saved record, or nil when nothing was saved yet.
func (c *Client) LoadPreviousData(ctx context.Context) (*domain.Record, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	value, err := c.api.LoadPreviousData(callCtx, new(emptypb.Empty))
	if err != nil {
		return nil, fmt.Errorf("load previous data: %w", err)
	}

	return api.RecordFromValue(value)
}

// SaveDataAndRunServer saves record and asks the launcher to start the backend.
func (c *Client) SaveDataAndRunServer(ctx context.Context, record *domain.Record) (bool, error) {
	if record == nil {
		return false, errRecordRequired
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	ack, err := c.api.SaveDataAndRunServer(callCtx, api.RecordToStruct(record))
	if err != nil {
		return false, fmt.Errorf("save data and run server: %w", err)
	}

	return ack.GetValue(), nil
}

// NotificationStream receives bridge notifications.
type NotificationStream struct {
	stream grpc.ServerStreamingClient[structpb.Struct]
	cancel context.CancelFunc
}

// Subscribe opens a notification stream. It returns once the launcher has
// registered the subscription, so no later notification is missed.
// The call timeout does not apply.
func (c *Client) Subscribe(ctx context.Context) (*NotificationStream, error) {
	streamCtx, cancel := context.WithCancel(c.withActor(ctx))

	stream, err := c.api.WatchNotifications(streamCtx, new(emptypb.Empty))
	if err != nil {
		cancel()

		return nil, fmt.Errorf("watch notifications: %w", err)
	}

	if _, err = stream.Header(); err != nil {
		cancel()

		return nil, fmt.Errorf("watch notifications: %w", err)
	}

	return &NotificationStream{stream: stream, cancel: cancel}, nil
}

// Recv blocks for the next notification. It returns io.EOF when the launcher ends the stream.
func (s *NotificationStream) Recv() (domain.Notification, error) {
	msg, err := s.stream.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Notification{}, io.EOF
		}

		return domain.Notification{}, fmt.Errorf("receive notification: %w", err)
	}

	return api.NotificationFromStruct(msg)
}

// Close ends the stream.
func (s *NotificationStream) Close() {
	s.cancel()
}

// WatchNotifications calls fn for every notification until fn returns false,
// the stream ends or ctx is done.
func (c *Client) WatchNotifications(ctx context.Context, fn func(domain.Notification) bool) error {
	stream, err := c.Subscribe(ctx)
	if err != nil {
		return err
	}

	defer stream.Close()

	for {
		notification, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}

			return err
		}

		if !fn(notification) {
			return nil
		}
	}
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = c.withActor(ctx)

	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}

func (c *Client) withActor(ctx context.Context) context.Context {
	if c.actor == "" {
		return ctx
	}

	return metadata.AppendToOutgoingContext(ctx, ActorMetadataKey, c.actor)
}
