package launcher

import (
	"context"

	"google.golang.org/grpc"

	"github.com/oshokin/recorder-launcher/internal/logger"
	"github.com/oshokin/recorder-launcher/internal/service/common"
)

// requestContext carries the launcher logger into a request and tags it with the caller.
func requestContext(base, ctx context.Context, method string) context.Context {
	ctx = logger.ToContext(ctx, logger.FromContext(base))
	ctx = logger.WithKV(ctx, "method", method)

	if actor, ok := common.ActorFromContext(ctx); ok {
		ctx = logger.WithKV(ctx, "actor", actor)
	}

	return ctx
}

func unaryActorInterceptor(base context.Context) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx = requestContext(base, ctx, info.FullMethod)
		logger.Debug(ctx, "Bridge call")

		resp, err := handler(ctx, req)
		if err != nil {
			logger.WarnKV(ctx, "Bridge call failed", "error", err)
		}

		return resp, err
	}
}

// contextStream overrides the stream context.
type contextStream struct {
	grpc.ServerStream

	ctx context.Context //nolint:containedctx // Replaces the stream context.
}

func (s *contextStream) Context() context.Context {
	return s.ctx
}

func streamActorInterceptor(base context.Context) grpc.StreamServerInterceptor {
	return func(srv any, stream grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := requestContext(base, stream.Context(), info.FullMethod)
		logger.Debug(ctx, "Bridge stream opened")

		err := handler(srv, &contextStream{ServerStream: stream, ctx: ctx})

		logger.Debug(ctx, "Bridge stream closed")

		return err
	}
}
