package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	BoardServiceName = "notely.v1.Board"
	SnapshotMethod   = "/" + BoardServiceName + "/Snapshot"
)

// BoardService returns everything the caller can see in one call. The
// payload is a Struct of the form {"topics": [...], "notes": [...]}.
type BoardService interface {
	Snapshot(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
}

var Board_ServiceDesc = grpc.ServiceDesc{
	ServiceName: BoardServiceName,
	HandlerType: (*BoardService)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Snapshot",
			Handler:    boardSnapshotHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "notely/v1/board.proto",
}

func RegisterBoardServer(s grpc.ServiceRegistrar, srv BoardService) {
	s.RegisterService(&Board_ServiceDesc, srv)
}

func boardSnapshotHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BoardService).Snapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SnapshotMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(BoardService).Snapshot(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

type BoardClient struct {
	cc grpc.ClientConnInterface
}

func NewBoardClient(cc grpc.ClientConnInterface) *BoardClient {
	return &BoardClient{cc: cc}
}

func (c *BoardClient) Snapshot(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, SnapshotMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
