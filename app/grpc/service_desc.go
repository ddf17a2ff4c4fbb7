package grpc

import (
	"context"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// The services below exchange well-known protobuf types only, so their
// descriptors and clients are written out here instead of generated.

var UsageServiceDesc = gogrpc.ServiceDesc{
	ServiceName: UsageServiceName,
	HandlerType: (*UsageServiceServer)(nil),
	Methods: []gogrpc.MethodDesc{
		{
			MethodName: "GetUsage",
			Handler:    getUsageHandler,
		},
	},
	Streams:  []gogrpc.StreamDesc{},
	Metadata: "skywatch/v1/usage.proto",
}

var SightingServiceDesc = gogrpc.ServiceDesc{
	ServiceName: SightingServiceName,
	HandlerType: (*SightingServiceServer)(nil),
	Methods: []gogrpc.MethodDesc{
		{
			MethodName: "GetShapeStats",
			Handler:    getShapeStatsHandler,
		},
	},
	Streams:  []gogrpc.StreamDesc{},
	Metadata: "skywatch/v1/sighting.proto",
}

func getUsageHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor gogrpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(UsageServiceServer).GetUsage(ctx, in)
	}
	info := &gogrpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: GetUsageMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(UsageServiceServer).GetUsage(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getShapeStatsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor gogrpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SightingServiceServer).GetShapeStats(ctx, in)
	}
	info := &gogrpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: GetShapeStatsMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SightingServiceServer).GetShapeStats(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

type UsageServiceClient struct {
	cc gogrpc.ClientConnInterface
}

func NewUsageServiceClient(cc gogrpc.ClientConnInterface) *UsageServiceClient {
	return &UsageServiceClient{cc: cc}
}

func (c *UsageServiceClient) GetUsage(ctx context.Context, in *emptypb.Empty, opts ...gogrpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetUsageMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type SightingServiceClient struct {
	cc gogrpc.ClientConnInterface
}

func NewSightingServiceClient(cc gogrpc.ClientConnInterface) *SightingServiceClient {
	return &SightingServiceClient{cc: cc}
}

func (c *SightingServiceClient) GetShapeStats(ctx context.Context, in *emptypb.Empty, opts ...gogrpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetShapeStatsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
