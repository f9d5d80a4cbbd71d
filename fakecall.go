package grpcvcr

import (
	"context"
	"io"
	"sort"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
)

// errorFromRecord rebuilds the *status.Status error a recorded outcome
// describes, or nil when the code is OK.
func errorFromRecord(code string, details *string) error {
	c := codeFromName(code)
	if c == codes.OK {
		return nil
	}
	msg := ""
	if details != nil {
		msg = *details
	}
	return status.Error(c, msg)
}

// mdFromStored rebuilds a metadata.MD from the ordered map shape stored on
// disk.
func mdFromStored(m map[string][]string) metadata.MD {
	if len(m) == 0 {
		return nil
	}
	md := make(metadata.MD, len(m))
	for k, v := range m {
		md[k] = append([]string(nil), v...)
	}
	return md
}

// storedFromMD converts a metadata.MD into the map shape the codec
// serializes, with deterministic key order left to the codec's own sort on
// save.
func storedFromMD(md metadata.MD) map[string][]string {
	if len(md) == 0 {
		return nil
	}
	out := make(map[string][]string, len(md))
	for k, v := range md {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// sortedKeys returns m's keys in lexicographic order, for printing metadata
// deterministically.
func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// deliverUnaryResult is the Go-native equivalent of the fake unary call
// object: it fills the caller's reply from the recorded body and returns
// the recorded outcome as a *status.Status error, or nil on OK. This is
// the entirety of what a "fake call object" needs to be in Go, since a
// unary invoker's contract is already just (fill reply, return error) —
// there is no separate call handle for callers to poll cancelled/done on.
func deliverUnaryResult(resp ResponseRecord, reply any, sink *trailerHolder) error {
	if sink != nil {
		sink.set(mdFromStored(resp.TrailingMetadata))
	}

	code := codeFromName(resp.Code)
	if code == codes.OK {
		if msg, ok := reply.(proto.Message); ok && len(resp.Body) > 0 {
			if err := proto.Unmarshal(resp.Body, msg); err != nil {
				return status.Errorf(codes.Internal, "grpcvcr: corrupt recorded body: %v", err)
			}
		}
		return nil
	}

	details := ""
	if resp.Details != nil {
		details = *resp.Details
	}
	return status.Error(code, details)
}

// fakeClientStream is the grpc.ClientStream played back on a cassette hit.
// SendMsg is a no-op (the call has already happened); RecvMsg hands back
// the next recorded message until the stream is exhausted, at which point
// it returns io.EOF or the recorded terminal error.
type fakeClientStream struct {
	ctx      context.Context
	sink     *trailerHolder
	code     string
	detail   *string
	next     func() ([]byte, bool)
	canceled func() bool // nil for newSyncFakeStream, which has no ctx-gated exhaustion
}

func (s *fakeClientStream) Header() (metadata.MD, error) { return nil, nil }

func (s *fakeClientStream) Trailer() metadata.MD {
	if s.sink == nil {
		return nil
	}
	return s.sink.get()
}

func (s *fakeClientStream) CloseSend() error { return nil }

func (s *fakeClientStream) Context() context.Context { return s.ctx }

func (s *fakeClientStream) SendMsg(m any) error { return nil }

func (s *fakeClientStream) RecvMsg(m any) error {
	body, ok := s.next()
	if !ok {
		if s.canceled != nil && s.canceled() {
			return s.ctx.Err()
		}
		if s.code != "" && codeFromName(s.code) != codes.OK {
			details := ""
			if s.detail != nil {
				details = *s.detail
			}
			return status.Error(codeFromName(s.code), details)
		}
		return io.EOF
	}
	msg, ok := m.(proto.Message)
	if !ok || len(body) == 0 {
		return nil
	}
	return proto.Unmarshal(body, msg)
}

var _ grpc.ClientStream = (*fakeClientStream)(nil)

// newSyncFakeStream builds a fakeClientStream that serves messages
// directly from a slice index, used by Channel (the blocking model).
func newSyncFakeStream(ctx context.Context, sink *trailerHolder, resp StreamingResponseRecord) *fakeClientStream {
	i := 0
	return &fakeClientStream{
		ctx:    ctx,
		sink:   sink,
		code:   resp.Code,
		detail: resp.Details,
		next: func() ([]byte, bool) {
			if i >= len(resp.Messages) {
				return nil, false
			}
			body := resp.Messages[i]
			i++
			return body, true
		},
	}
}

// newPumpedFakeStream builds a fakeClientStream fed by a background
// goroutine over an unbuffered channel, used by AsyncChannel (the
// cooperative model). Every RecvMsg is a channel receive, so the runtime
// demonstrably has an opportunity to schedule another goroutine between
// any two consecutive messages (P9).
func newPumpedFakeStream(ctx context.Context, sink *trailerHolder, resp StreamingResponseRecord) *fakeClientStream {
	msgs := make(chan []byte)
	go func() {
		defer close(msgs)
		for _, body := range resp.Messages {
			select {
			case msgs <- body:
			case <-ctx.Done():
				return
			}
		}
	}()

	return &fakeClientStream{
		ctx:    ctx,
		sink:   sink,
		code:   resp.Code,
		detail: resp.Details,
		next: func() ([]byte, bool) {
			select {
			case body, ok := <-msgs:
				return body, ok
			case <-ctx.Done():
				return nil, false
			}
		},
		canceled: func() bool { return ctx.Err() != nil },
	}
}
