package vcrtest

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// UserStore backs EchoServer: a fixed table of users keyed by "id" (a
// float64, since structpb.Struct numbers decode that way).
type UserStore map[float64]*structpb.Struct

// EchoServer is a trivial TestServiceServer used to exercise the
// interceptor stack against a real transport during recording.
type EchoServer struct {
	Users UserStore
}

func (s *EchoServer) userByID(req *structpb.Struct) (*structpb.Struct, bool) {
	id, ok := req.Fields["id"]
	if !ok {
		return nil, false
	}
	u, ok := s.Users[id.GetNumberValue()]
	return u, ok
}

func (s *EchoServer) GetUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	u, ok := s.userByID(req)
	if !ok {
		id := req.Fields["id"].GetNumberValue()
		return nil, status.Errorf(codes.NotFound, "user %v not found", id)
	}
	return u, nil
}

func (s *EchoServer) ListUsers(req *structpb.Struct, stream TestService_ListUsersServer) error {
	limit := len(s.Users)
	if v, ok := req.Fields["limit"]; ok {
		limit = int(v.GetNumberValue())
	}
	sent := 0
	for _, id := range sortedUserIDs(s.Users) {
		if sent >= limit {
			break
		}
		if err := stream.Send(s.Users[id]); err != nil {
			return err
		}
		sent++
	}
	return nil
}

func (s *EchoServer) CollectUsers(stream TestService_CollectUsersServer) error {
	received, err := structpb.NewList(nil)
	if err != nil {
		return err
	}
	for {
		req, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		received.Values = append(received.Values, structpb.NewStructValue(req))
	}
	return stream.SendAndClose(&structpb.Struct{
		Fields: map[string]*structpb.Value{"count": structpb.NewNumberValue(float64(len(received.Values)))},
	})
}

func (s *EchoServer) Chat(stream TestService_ChatServer) error {
	for {
		msg, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := stream.Send(msg); err != nil {
			return err
		}
	}
}

func sortedUserIDs(users UserStore) []float64 {
	ids := make([]float64, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	return ids
}

// StartServer boots srv on an ephemeral loopback port and registers
// t.Cleanup to shut it down. Returns the dial address.
func StartServer(t *testing.T, srv TestServiceServer) string {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("vcrtest: listen: %v", err)
	}

	s := grpc.NewServer()
	RegisterTestServiceServer(s, srv)

	go func() {
		_ = s.Serve(lis)
	}()
	t.Cleanup(s.Stop)

	return lis.Addr().String()
}

// NewUser is a small builder so tests can write NewUser(1, "Alice",
// "alice@example.com") instead of hand-assembling a structpb.Struct.
func NewUser(id float64, name, email string) *structpb.Struct {
	return &structpb.Struct{
		Fields: map[string]*structpb.Value{
			"id":    structpb.NewNumberValue(id),
			"name":  structpb.NewStringValue(name),
			"email": structpb.NewStringValue(email),
		},
	}
}

// IDRequest builds the {id: ...} request shape used throughout the tests.
func IDRequest(id float64) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{"id": structpb.NewNumberValue(id)}}
}

// LimitRequest builds the {limit: ...} request shape used by ListUsers.
func LimitRequest(limit int) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{"limit": structpb.NewNumberValue(float64(limit))}}
}
