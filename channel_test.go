package grpcvcr

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/shhac/grpcvcr/internal/vcrtest"
)

func dialOpts() ChannelOption {
	return WithDialOptions(grpc.WithTransportCredentials(insecure.NewCredentials()))
}

// byMethodAndBody is the matcher these end-to-end tests open their
// cassettes with: method path plus byte-exact request body, so two calls
// to the same method with different arguments are never confused.
var byMethodAndBody = And(MethodMatcher{}, RequestMatcher{})

// TestUnaryRecordThenReplay covers end-to-end scenario 1 from the test
// plan: recording a unary call then replaying it against a server that is
// never actually contacted.
func TestUnaryRecordThenReplay(t *testing.T) {
	addr := vcrtest.StartServer(t, &vcrtest.EchoServer{
		Users: vcrtest.UserStore{1: vcrtest.NewUser(1, "Alice", "alice@example.com")},
	})
	path := filepath.Join(t.TempDir(), "unary.yaml")

	cass, err := Open(path, NewEpisodes, byMethodAndBody)
	require.NoError(t, err)
	ch, err := Dial(cass, addr, dialOpts())
	require.NoError(t, err)

	client := vcrtest.NewTestServiceClient(ch)
	got, err := client.GetUser(context.Background(), vcrtest.IDRequest(1))
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Fields["name"].GetStringValue())

	require.NoError(t, ch.Close())

	replayCass, err := Open(path, None, byMethodAndBody)
	require.NoError(t, err)
	replayCh, err := Dial(replayCass, "127.0.0.1:1", dialOpts())
	require.NoError(t, err)
	defer replayCh.Close()

	replayClient := vcrtest.NewTestServiceClient(replayCh)
	replayed, err := replayClient.GetUser(context.Background(), vcrtest.IDRequest(1))
	require.NoError(t, err)
	assert.True(t, proto.Equal(got, replayed), "replayed %v, recorded %v", replayed, got)

	_, err = replayClient.GetUser(context.Background(), vcrtest.IDRequest(2))
	require.Error(t, err)
	var disabled *RecordingDisabledError
	assert.ErrorAs(t, err, &disabled)
	assert.Equal(t, vcrtest.MethodGetUser, disabled.Method)
}

// TestErrorReplayFidelity covers end-to-end scenario 3: a recorded RPC
// error reproduces the same code and details on replay (P8).
func TestErrorReplayFidelity(t *testing.T) {
	addr := vcrtest.StartServer(t, &vcrtest.EchoServer{Users: vcrtest.UserStore{}})
	path := filepath.Join(t.TempDir(), "error.yaml")

	cass, err := Open(path, NewEpisodes, byMethodAndBody)
	require.NoError(t, err)
	ch, err := Dial(cass, addr, dialOpts())
	require.NoError(t, err)

	client := vcrtest.NewTestServiceClient(ch)
	_, err = client.GetUser(context.Background(), vcrtest.IDRequest(999))
	require.Error(t, err)
	require.NoError(t, ch.Close())

	replayCass, err := Open(path, None, byMethodAndBody)
	require.NoError(t, err)
	replayCh, err := Dial(replayCass, "127.0.0.1:1", dialOpts())
	require.NoError(t, err)
	defer replayCh.Close()

	_, err = vcrtest.NewTestServiceClient(replayCh).GetUser(context.Background(), vcrtest.IDRequest(999))
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.NotFound, st.Code())
	assert.Contains(t, st.Message(), "not found")
}

// TestServerStreamRecordThenReplay covers end-to-end scenario 2 and P7
// (order preservation).
func TestServerStreamRecordThenReplay(t *testing.T) {
	addr := vcrtest.StartServer(t, &vcrtest.EchoServer{
		Users: vcrtest.UserStore{
			1: vcrtest.NewUser(1, "Alice", "alice@example.com"),
			2: vcrtest.NewUser(2, "Bob", "bob@example.com"),
		},
	})
	path := filepath.Join(t.TempDir(), "stream.yaml")

	cass, err := Open(path, NewEpisodes, byMethodAndBody)
	require.NoError(t, err)
	ch, err := Dial(cass, addr, dialOpts())
	require.NoError(t, err)

	names := collectListUsersNames(t, ch, 2)
	assert.Equal(t, []string{"Alice", "Bob"}, names)
	require.NoError(t, ch.Close())

	replayCass, err := Open(path, None, byMethodAndBody)
	require.NoError(t, err)
	replayCh, err := Dial(replayCass, "127.0.0.1:1", dialOpts())
	require.NoError(t, err)
	defer replayCh.Close()

	replayedNames := collectListUsersNames(t, replayCh, 2)
	assert.Equal(t, names, replayedNames)
}

func collectListUsersNames(t *testing.T, ch grpc.ClientConnInterface, limit int) []string {
	t.Helper()
	stream, err := vcrtest.NewTestServiceClient(ch).ListUsers(context.Background(), vcrtest.LimitRequest(limit))
	require.NoError(t, err)

	var names []string
	for {
		u, err := stream.Recv()
		if err != nil {
			break
		}
		names = append(names, u.Fields["name"].GetStringValue())
	}
	return names
}

// TestMetadataMatcherIsolation covers end-to-end scenario 6.
func TestMetadataMatcherIsolation(t *testing.T) {
	live := rr("/test.TestService/GetUser", "id:1", map[string][]string{"authorization": {"Bearer A"}, "x-request-id": {"r2"}})
	sameAuth := rr("/test.TestService/GetUser", "id:1", map[string][]string{"authorization": {"Bearer A"}, "x-request-id": {"r1"}})
	diffAuth := rr("/test.TestService/GetUser", "id:1", map[string][]string{"authorization": {"Bearer B"}, "x-request-id": {"r1"}})

	m := And(MethodMatcher{}, MetadataMatcher{Keys: []string{"authorization"}})
	assert.True(t, m.Matches(live, sameAuth))
	assert.False(t, m.Matches(live, diffAuth))
}

// TestAsyncChannelYieldsBetweenStreamMessages is a direct test of P9: a
// background counter goroutine observes progress while AsyncChannel
// delivers a multi-message playback stream, proving RecvMsg is a genuine
// scheduling point rather than a tight synchronous loop.
func TestAsyncChannelYieldsBetweenStreamMessages(t *testing.T) {
	resp := StreamingResponseRecord{
		Messages: [][]byte{mustMarshalUser(t, vcrtest.NewUser(1, "Alice", "")), mustMarshalUser(t, vcrtest.NewUser(2, "Bob", ""))},
		Code:     "OK",
	}

	ctx := context.Background()
	stream := newPumpedFakeStream(ctx, nil, resp)

	progressed := make(chan struct{}, 1)
	go func() {
		time.Sleep(time.Millisecond)
		progressed <- struct{}{}
	}()

	var first structpb.Struct
	require.NoError(t, stream.RecvMsg(&first))

	select {
	case <-progressed:
	case <-time.After(time.Second):
		t.Fatal("background goroutine never got a chance to run between messages")
	}

	var second structpb.Struct
	require.NoError(t, stream.RecvMsg(&second))
	assert.Equal(t, "Bob", second.Fields["name"].GetStringValue())

	err := stream.RecvMsg(&structpb.Struct{})
	assert.ErrorIs(t, err, io.EOF)
}

func mustMarshalUser(t *testing.T, u *structpb.Struct) []byte {
	t.Helper()
	body, err := proto.Marshal(u)
	require.NoError(t, err)
	return body
}

// TestClientStreamRecordThenReplay covers client-streaming record/replay:
// CollectUsers sends several requests and reads one reply via
// CloseAndRecv.
func TestClientStreamRecordThenReplay(t *testing.T) {
	addr := vcrtest.StartServer(t, &vcrtest.EchoServer{Users: vcrtest.UserStore{}})
	path := filepath.Join(t.TempDir(), "collect.yaml")

	cass, err := Open(path, NewEpisodes, byMethodAndBody)
	require.NoError(t, err)
	ch, err := Dial(cass, addr, dialOpts())
	require.NoError(t, err)

	count := collectUsersCount(t, ch, vcrtest.NewUser(1, "Alice", ""), vcrtest.NewUser(2, "Bob", ""))
	assert.EqualValues(t, 2, count)
	require.NoError(t, ch.Close())

	replayCass, err := Open(path, None, byMethodAndBody)
	require.NoError(t, err)
	replayCh, err := Dial(replayCass, "127.0.0.1:1", dialOpts())
	require.NoError(t, err)
	defer replayCh.Close()

	replayedCount := collectUsersCount(t, replayCh, vcrtest.NewUser(1, "Alice", ""), vcrtest.NewUser(2, "Bob", ""))
	assert.Equal(t, count, replayedCount)
}

func collectUsersCount(t *testing.T, ch grpc.ClientConnInterface, users ...*structpb.Struct) float64 {
	t.Helper()
	stream, err := vcrtest.NewTestServiceClient(ch).CollectUsers(context.Background())
	require.NoError(t, err)
	for _, u := range users {
		require.NoError(t, stream.Send(u))
	}
	resp, err := stream.CloseAndRecv()
	require.NoError(t, err)
	return resp.Fields["count"].GetNumberValue()
}

// TestBidiStreamRecordThenReplay covers bidi-streaming record/replay with a
// send goroutine interleaved against the receive loop — the duplex pattern
// recordingClientStream supports (see its doc comment): the sender closes
// the send side as soon as it is done, independently of how many replies
// have arrived yet.
func TestBidiStreamRecordThenReplay(t *testing.T) {
	addr := vcrtest.StartServer(t, &vcrtest.EchoServer{})
	path := filepath.Join(t.TempDir(), "chat.yaml")

	cass, err := Open(path, NewEpisodes, byMethodAndBody)
	require.NoError(t, err)
	ch, err := Dial(cass, addr, dialOpts())
	require.NoError(t, err)

	names := chatEcho(t, ch, vcrtest.NewUser(1, "Alice", ""), vcrtest.NewUser(2, "Bob", ""))
	assert.Equal(t, []string{"Alice", "Bob"}, names)
	require.NoError(t, ch.Close())

	replayCass, err := Open(path, None, byMethodAndBody)
	require.NoError(t, err)
	replayCh, err := Dial(replayCass, "127.0.0.1:1", dialOpts())
	require.NoError(t, err)
	defer replayCh.Close()

	replayedNames := chatEcho(t, replayCh, vcrtest.NewUser(1, "Alice", ""), vcrtest.NewUser(2, "Bob", ""))
	assert.Equal(t, names, replayedNames)
}

func chatEcho(t *testing.T, ch grpc.ClientConnInterface, users ...*structpb.Struct) []string {
	t.Helper()
	stream, err := vcrtest.NewTestServiceClient(ch).Chat(context.Background())
	require.NoError(t, err)

	sendErrs := make(chan error, 1)
	go func() {
		for _, u := range users {
			if err := stream.Send(u); err != nil {
				sendErrs <- err
				return
			}
		}
		sendErrs <- stream.CloseSend()
	}()

	var names []string
	for {
		u, err := stream.Recv()
		if err != nil {
			break
		}
		names = append(names, u.Fields["name"].GetStringValue())
	}
	require.NoError(t, <-sendErrs)
	return names
}

// TestTrailerSinkRoundTrips exercises WithTrailerSink on both the record and
// playback paths.
func TestTrailerSinkRoundTrips(t *testing.T) {
	addr := vcrtest.StartServer(t, &vcrtest.EchoServer{Users: vcrtest.UserStore{1: vcrtest.NewUser(1, "Alice", "")}})
	path := filepath.Join(t.TempDir(), "trailer.yaml")

	cass, err := Open(path, NewEpisodes, byMethodAndBody)
	require.NoError(t, err)
	ch, err := Dial(cass, addr, dialOpts())
	require.NoError(t, err)

	ctx, trailer := WithTrailerSink(context.Background())
	_, err = vcrtest.NewTestServiceClient(ch).GetUser(ctx, vcrtest.IDRequest(1))
	require.NoError(t, err)
	_ = trailer() // real server sets no trailers in this fixture; just exercises the plumbing
	require.NoError(t, ch.Close())

	replayCass, err := Open(path, None, byMethodAndBody)
	require.NoError(t, err)
	replayCh, err := Dial(replayCass, "127.0.0.1:1", dialOpts())
	require.NoError(t, err)
	defer replayCh.Close()

	replayCtx, replayTrailer := WithTrailerSink(context.Background())
	_, err = vcrtest.NewTestServiceClient(replayCh).GetUser(replayCtx, vcrtest.IDRequest(1))
	require.NoError(t, err)
	assert.Equal(t, metadata.MD(nil), replayTrailer())
}
