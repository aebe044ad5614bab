package bridge

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "recorder.bridge.v1.Bridge"

// Full method names.
const (
	FullMethodLoadPreviousData     = "/" + ServiceName + "/LoadPreviousData"
	FullMethodSaveDataAndRunServer = "/" + ServiceName + "/SaveDataAndRunServer"
	FullMethodWatchNotifications   = "/" + ServiceName + "/WatchNotifications"
)

// BridgeServer is the server API of the bridge service.
//
//nolint:revive // Mirrors the name generated code would use.
type BridgeServer interface {
	// LoadPreviousData returns the saved record as a struct, or null.
	LoadPreviousData(ctx context.Context, in *emptypb.Empty) (*structpb.Value, error)
	// SaveDataAndRunServer saves the record and acknowledges the backend start.
	SaveDataAndRunServer(ctx context.Context, in *structpb.Struct) (*wrapperspb.BoolValue, error)
	// WatchNotifications streams navigate/failed notifications.
	WatchNotifications(in *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error
}

// BridgeServiceDesc describes the bridge service for grpc.Server.
//
//nolint:gochecknoglobals // grpc.ServiceRegistrar needs a stable descriptor.
var BridgeServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BridgeServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "LoadPreviousData",
			Handler:    loadPreviousDataHandler,
		},
		{
			MethodName: "SaveDataAndRunServer",
			Handler:    saveDataAndRunServerHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchNotifications",
			Handler:       watchNotificationsHandler,
			ServerStreams: true,
		},
	},
}

// RegisterBridgeServer registers srv on s.
func RegisterBridgeServer(s grpc.ServiceRegistrar, srv BridgeServer) {
	s.RegisterService(&BridgeServiceDesc, srv)
}

func loadPreviousDataHandler(
	srv any,
	ctx context.Context, //nolint:revive // Handler signature is fixed by grpc.MethodHandler.
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(BridgeServer).LoadPreviousData(ctx, in) //nolint:forcetypeassert // Guaranteed by HandlerType.
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: FullMethodLoadPreviousData,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BridgeServer).LoadPreviousData(ctx, req.(*emptypb.Empty)) //nolint:forcetypeassert // Guaranteed by dec.
	}

	return interceptor(ctx, in, info, handler)
}

func saveDataAndRunServerHandler(
	srv any,
	ctx context.Context, //nolint:revive // Handler signature is fixed by grpc.MethodHandler.
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(BridgeServer).SaveDataAndRunServer(ctx, in) //nolint:forcetypeassert // Guaranteed by HandlerType.
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: FullMethodSaveDataAndRunServer,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BridgeServer).SaveDataAndRunServer(ctx, req.(*structpb.Struct)) //nolint:forcetypeassert // Guaranteed by dec.
	}

	return interceptor(ctx, in, info, handler)
}

func watchNotificationsHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}

	//nolint:forcetypeassert // Guaranteed by HandlerType.
	return srv.(BridgeServer).WatchNotifications(in, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{
		ServerStream: stream,
	})
}

// BridgeClient is the client API of the bridge service.
//
//nolint:revive // Mirrors the name generated code would use.
type BridgeClient interface {
	LoadPreviousData(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Value, error)
	SaveDataAndRunServer(
		ctx context.Context,
		in *structpb.Struct,
		opts ...grpc.CallOption,
	) (*wrapperspb.BoolValue, error)
	WatchNotifications(
		ctx context.Context,
		in *emptypb.Empty,
		opts ...grpc.CallOption,
	) (grpc.ServerStreamingClient[structpb.Struct], error)
}

type bridgeClient struct {
	cc grpc.ClientConnInterface
}

// NewBridgeClient creates a client on cc.
func NewBridgeClient(cc grpc.ClientConnInterface) BridgeClient {
	return &bridgeClient{cc: cc}
}

func (c *bridgeClient) LoadPreviousData(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*structpb.Value, error) {
	out := new(structpb.Value)
	if err := c.cc.Invoke(ctx, FullMethodLoadPreviousData, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *bridgeClient) SaveDataAndRunServer(
	ctx context.Context,
	in *structpb.Struct,
	opts ...grpc.CallOption,
) (*wrapperspb.BoolValue, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, FullMethodSaveDataAndRunServer, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *bridgeClient) WatchNotifications(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &BridgeServiceDesc.Streams[0], FullMethodWatchNotifications, opts...)
	if err != nil {
		return nil, err
	}

	x := &grpc.GenericClientStream[emptypb.Empty, structpb.Struct]{ClientStream: stream}
	if err = x.SendMsg(in); err != nil {
		return nil, err
	}

	if err = x.CloseSend(); err != nil {
		return nil, err
	}

	return x, nil
}
