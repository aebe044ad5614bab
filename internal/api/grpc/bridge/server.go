package bridge

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	domain "github.com/oshokin/recorder-launcher/internal/domain/recorder"
)

// Service abstracts the business operations the transport layer depends on.
type Service interface {
	LoadPreviousData(ctx context.Context) (*domain.Record, error)
	SaveDataAndRunServer(ctx context.Context, record *domain.Record) (bool, error)
	Subscribe() (<-chan domain.Notification, func())
}

// Server implements BridgeServer.
type Server struct {
	// service provides the business logic for bridge operations.
	service Service
}

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// LoadPreviousData returns the saved record or null.
func (s *Server) LoadPreviousData(ctx context.Context, _ *emptypb.Empty) (*structpb.Value, error) {
	record, err := s.service.LoadPreviousData(ctx)
	if err != nil {
		return nil, status.Error(codes.Internal, "unable to load previous data")
	}

	return RecordToValue(record), nil
}

// SaveDataAndRunServer saves the record and starts the backend.
func (s *Server) SaveDataAndRunServer(ctx context.Context, in *structpb.Struct) (*wrapperspb.BoolValue, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "record is required")
	}

	record, err := RecordFromStruct(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	ack, err := s.service.SaveDataAndRunServer(ctx, record)

	switch {
	case err == nil:
		return wrapperspb.Bool(ack), nil
	case errors.Is(err, domain.ErrInvalidRecord):
		return nil, status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrBackendUnavailable):
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	default:
		return nil, status.Error(codes.Internal, "unable to save data and run server")
	}
}

// WatchNotifications streams notifications until the client goes away.
func (s *Server) WatchNotifications(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	notifications, unsubscribe := s.service.Subscribe()
	defer unsubscribe()

	// Headers tell the client the subscription is registered.
	if err := stream.SendHeader(metadata.MD{}); err != nil {
		return err
	}

	ctx := stream.Context()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-notifications:
			if !ok {
				return nil
			}

			if err := stream.Send(NotificationToStruct(n)); err != nil {
				return err
			}
		}
	}
}
