// Package vcrtest provides a small hand-written gRPC service used by the
// root package's tests. Its request and response messages are
// google.golang.org/protobuf/types/known/structpb.Struct — a real compiled
// protobuf message — so tests exercise genuine proto.Marshal/Unmarshal
// wire bytes without requiring a protoc code generation step, which is
// explicitly out of scope for this module.
//
// The service surface mirrors what protoc-gen-go-grpc would emit for:
//
//	service TestService {
//	  rpc GetUser(Struct) returns (Struct);
//	  rpc ListUsers(Struct) returns (stream Struct);
//	  rpc CollectUsers(stream Struct) returns (Struct);
//	  rpc Chat(stream Struct) returns (stream Struct);
//	}
package vcrtest

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName        = "test.TestService"
	MethodGetUser      = "/" + serviceName + "/GetUser"
	MethodListUsers    = "/" + serviceName + "/ListUsers"
	MethodCollectUsers = "/" + serviceName + "/CollectUsers"
	MethodChat         = "/" + serviceName + "/Chat"
)

// TestServiceServer is the server-side contract.
type TestServiceServer interface {
	GetUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListUsers(*structpb.Struct, TestService_ListUsersServer) error
	CollectUsers(TestService_CollectUsersServer) error
	Chat(TestService_ChatServer) error
}

// TestServiceClient is the client-side contract.
type TestServiceClient interface {
	GetUser(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListUsers(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (TestService_ListUsersClient, error)
	CollectUsers(ctx context.Context, opts ...grpc.CallOption) (TestService_CollectUsersClient, error)
	Chat(ctx context.Context, opts ...grpc.CallOption) (TestService_ChatClient, error)
}

type testServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewTestServiceClient builds a client over any grpc.ClientConnInterface —
// a real *grpc.ClientConn, or a grpcvcr.Channel/AsyncChannel.
func NewTestServiceClient(cc grpc.ClientConnInterface) TestServiceClient {
	return &testServiceClient{cc: cc}
}

func (c *testServiceClient) GetUser(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodGetUser, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *testServiceClient) ListUsers(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (TestService_ListUsersClient, error) {
	stream, err := c.cc.NewStream(ctx, &serviceDesc.Streams[0], MethodListUsers, opts...)
	if err != nil {
		return nil, err
	}
	x := &testServiceListUsersClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *testServiceClient) CollectUsers(ctx context.Context, opts ...grpc.CallOption) (TestService_CollectUsersClient, error) {
	stream, err := c.cc.NewStream(ctx, &serviceDesc.Streams[1], MethodCollectUsers, opts...)
	if err != nil {
		return nil, err
	}
	return &testServiceCollectUsersClient{stream}, nil
}

func (c *testServiceClient) Chat(ctx context.Context, opts ...grpc.CallOption) (TestService_ChatClient, error) {
	stream, err := c.cc.NewStream(ctx, &serviceDesc.Streams[2], MethodChat, opts...)
	if err != nil {
		return nil, err
	}
	return &testServiceChatClient{stream}, nil
}

// TestService_ListUsersClient/Server, _CollectUsers*, _Chat* follow the
// same shape protoc-gen-go-grpc emits: a thin wrapper around
// grpc.ClientStream/ServerStream typing Send/Recv to *structpb.Struct.

type TestService_ListUsersClient interface {
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

type testServiceListUsersClient struct{ grpc.ClientStream }

func (x *testServiceListUsersClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

type TestService_ListUsersServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type testServiceListUsersServer struct{ grpc.ServerStream }

func (x *testServiceListUsersServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

type TestService_CollectUsersClient interface {
	Send(*structpb.Struct) error
	CloseAndRecv() (*structpb.Struct, error)
	grpc.ClientStream
}

type testServiceCollectUsersClient struct{ grpc.ClientStream }

func (x *testServiceCollectUsersClient) Send(m *structpb.Struct) error {
	return x.ClientStream.SendMsg(m)
}

func (x *testServiceCollectUsersClient) CloseAndRecv() (*structpb.Struct, error) {
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

type TestService_CollectUsersServer interface {
	SendAndClose(*structpb.Struct) error
	Recv() (*structpb.Struct, error)
	grpc.ServerStream
}

type testServiceCollectUsersServer struct{ grpc.ServerStream }

func (x *testServiceCollectUsersServer) SendAndClose(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

func (x *testServiceCollectUsersServer) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

type TestService_ChatClient interface {
	Send(*structpb.Struct) error
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

type testServiceChatClient struct{ grpc.ClientStream }

func (x *testServiceChatClient) Send(m *structpb.Struct) error {
	return x.ClientStream.SendMsg(m)
}

func (x *testServiceChatClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

type TestService_ChatServer interface {
	Send(*structpb.Struct) error
	Recv() (*structpb.Struct, error)
	grpc.ServerStream
}

type testServiceChatServer struct{ grpc.ServerStream }

func (x *testServiceChatServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

func (x *testServiceChatServer) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func getUserHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TestServiceServer).GetUser(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGetUser}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TestServiceServer).GetUser(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func listUsersHandler(srv any, stream grpc.ServerStream) error {
	m := new(structpb.Struct)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(TestServiceServer).ListUsers(m, &testServiceListUsersServer{stream})
}

func collectUsersHandler(srv any, stream grpc.ServerStream) error {
	return srv.(TestServiceServer).CollectUsers(&testServiceCollectUsersServer{stream})
}

func chatHandler(srv any, stream grpc.ServerStream) error {
	return srv.(TestServiceServer).Chat(&testServiceChatServer{stream})
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*TestServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetUser", Handler: getUserHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "ListUsers", Handler: listUsersHandler, ServerStreams: true},
		{StreamName: "CollectUsers", Handler: collectUsersHandler, ClientStreams: true},
		{StreamName: "Chat", Handler: chatHandler, ServerStreams: true, ClientStreams: true},
	},
}

// RegisterTestServiceServer registers srv's handlers on s.
func RegisterTestServiceServer(s grpc.ServiceRegistrar, srv TestServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}
