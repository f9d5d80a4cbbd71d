package grpcvcr

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	"github.com/shhac/grpcvcr/internal/vcrlog"
)

// fakeStreamCtor builds the playback stream for a cassette hit. Channel
// uses newSyncFakeStream (the blocking model); AsyncChannel uses
// newPumpedFakeStream (the cooperative model, satisfying P9).
type fakeStreamCtor func(ctx context.Context, sink *trailerHolder, resp StreamingResponseRecord) *fakeClientStream

func rpcTypeFromDesc(desc *grpc.StreamDesc) RPCType {
	switch {
	case desc.ClientStreams && desc.ServerStreams:
		return BidiStreaming
	case desc.ClientStreams:
		return ClientStreaming
	default:
		return ServerStreaming
	}
}

func metadataFromOutgoing(ctx context.Context) map[string][]string {
	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		return nil
	}
	return storedFromMD(md)
}

func marshalRequest(req any) ([]byte, error) {
	msg, ok := req.(proto.Message)
	if !ok {
		return nil, status.Error(codes.Internal, "grpcvcr: request does not implement proto.Message")
	}
	return proto.Marshal(msg)
}

func responseRecordFromOutcome(reply any, callErr error, trailer metadata.MD) ResponseRecord {
	st, _ := status.FromError(callErr)
	resp := ResponseRecord{
		Code:             codeName(st.Code()),
		TrailingMetadata: storedFromMD(trailer),
	}
	if st.Code() == codes.OK {
		if msg, ok := reply.(proto.Message); ok {
			if body, err := proto.Marshal(msg); err == nil {
				resp.Body = body
			}
		}
		return resp
	}
	msg := st.Message()
	resp.Details = &msg
	return resp
}

// unaryInterceptor builds the grpc.UnaryClientInterceptor consulting cass
// for every unary/unary call.
func unaryInterceptor(cass *Cassette, logger *slog.Logger) grpc.UnaryClientInterceptor {
	if logger == nil {
		logger = vcrlog.Nop()
	}
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		body, err := marshalRequest(req)
		if err != nil {
			return err
		}
		live := RequestRecord{Method: method, Body: body, Metadata: metadataFromOutgoing(ctx)}
		sink := trailerSinkFromContext(ctx)

		if cass.RecordMode() != All {
			if ep, ok := cass.Find(live); ok {
				logger.Debug("cassette hit", "method", method, "rpc_type", "unary", "body", truncateForLog(string(live.Body)))
				return deliverUnaryResult(ep.Response, reply, sink)
			}
		}

		if !cass.CanRecord() {
			logger.Info("recording disabled", "method", method)
			return &RecordingDisabledError{Method: method}
		}

		var trailer metadata.MD
		opts = append(opts, grpc.Trailer(&trailer))
		callErr := invoker(ctx, method, req, reply, cc, opts...)

		if ctx.Err() != nil {
			logger.Debug("call cancelled, not recording", "method", method)
			return callErr
		}

		resp := responseRecordFromOutcome(reply, callErr, trailer)
		cass.Record(Episode{Request: live, Response: resp, RPCType: Unary})
		if sink != nil {
			sink.set(trailer)
		}
		logger.Debug("recorded episode", "method", method, "rpc_type", "unary", "code", resp.Code)
		return callErr
	}
}

// streamInterceptor builds the grpc.StreamClientInterceptor shared by the
// three streaming call shapes; fakeCtor picks the blocking or cooperative
// playback stream implementation.
func streamInterceptor(cass *Cassette, fakeCtor fakeStreamCtor, logger *slog.Logger) grpc.StreamClientInterceptor {
	if logger == nil {
		logger = vcrlog.Nop()
	}
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		return newRecordingClientStream(ctx, cass, method, desc, cc, streamer, opts, fakeCtor, logger), nil
	}
}

// recordingClientStream buffers every outgoing message and defers the
// record/playback decision to CloseSend, the only point at which the full
// request is known. RecvMsg never triggers the decision itself; it waits
// for CloseSend to have run. That matches every generated client shape:
// server-streaming and client-streaming stubs call CloseSend immediately
// after sending the request, before the caller ever calls Recv, and a
// duplex bidi caller that sends on one goroutine and receives on another
// still calls CloseSend once sending is done. A single goroutine that
// alternates Send/await-reply/Send on one bidi stream without ever calling
// CloseSend first is not supported — RecvMsg would block forever waiting
// for a decision that never comes, since this wrapper cannot consult or
// open the real transport until it knows the full outgoing message set.
type recordingClientStream struct {
	ctx      context.Context
	cass     *Cassette
	method   string
	desc     *grpc.StreamDesc
	cc       *grpc.ClientConn
	streamer grpc.Streamer
	opts     []grpc.CallOption
	fakeCtor fakeStreamCtor
	sink     *trailerHolder
	rpcType  RPCType
	logger   *slog.Logger

	mu         sync.Mutex
	sentMsgs   []proto.Message
	sentBodies [][]byte
	decided    bool
	decideErr  error
	decideDone chan struct{}

	fake *fakeClientStream
	real grpc.ClientStream

	live       RequestRecord
	recvBodies [][]byte
	finalized  bool
}

func newRecordingClientStream(ctx context.Context, cass *Cassette, method string, desc *grpc.StreamDesc, cc *grpc.ClientConn, streamer grpc.Streamer, opts []grpc.CallOption, fakeCtor fakeStreamCtor, logger *slog.Logger) *recordingClientStream {
	return &recordingClientStream{
		ctx:        ctx,
		cass:       cass,
		method:     method,
		desc:       desc,
		cc:         cc,
		streamer:   streamer,
		opts:       opts,
		fakeCtor:   fakeCtor,
		sink:       trailerSinkFromContext(ctx),
		rpcType:    rpcTypeFromDesc(desc),
		logger:     logger,
		decideDone: make(chan struct{}),
	}
}

var _ grpc.ClientStream = (*recordingClientStream)(nil)

func (s *recordingClientStream) SendMsg(m any) error {
	msg, ok := m.(proto.Message)
	if !ok {
		return status.Error(codes.Internal, "grpcvcr: message does not implement proto.Message")
	}
	// Deterministic marshaling keeps map-field order stable, so the same
	// message sequence yields the same recorded body on every run.
	body, err := proto.MarshalOptions{Deterministic: true}.Marshal(msg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.decided && s.real != nil {
		real := s.real
		s.mu.Unlock()
		return real.SendMsg(msg)
	}
	s.sentMsgs = append(s.sentMsgs, msg)
	s.sentBodies = append(s.sentBodies, body)
	s.mu.Unlock()
	return nil
}

func (s *recordingClientStream) CloseSend() error {
	return s.decide()
}

// decide consults the cassette exactly once, using every SendMsg observed
// so far, and either wires up a playback fake stream or opens (and fully
// drains the sends into) the real transport stream.
func (s *recordingClientStream) decide() error {
	s.mu.Lock()
	if s.decided {
		err := s.decideErr
		s.mu.Unlock()
		return err
	}
	s.decided = true
	body := bytes.Join(s.sentBodies, nil)
	live := RequestRecord{Method: s.method, Body: body, Metadata: metadataFromOutgoing(s.ctx)}
	sentMsgs := s.sentMsgs
	s.live = live
	s.mu.Unlock()
	defer close(s.decideDone)

	if s.cass.RecordMode() != All {
		if ep, ok := s.cass.Find(live); ok {
			s.logger.Debug("cassette hit", "method", s.method, "rpc_type", string(s.rpcType))
			s.mu.Lock()
			s.fake = s.fakeCtor(s.ctx, s.sink, streamingRecordOf(ep, s.rpcType))
			s.mu.Unlock()
			return nil
		}
	}

	if !s.cass.CanRecord() {
		err := &RecordingDisabledError{Method: s.method}
		s.logger.Info("recording disabled", "method", s.method)
		s.mu.Lock()
		s.decideErr = err
		s.mu.Unlock()
		return err
	}

	real, err := s.streamer(s.ctx, s.desc, s.cc, s.method, s.opts...)
	if err != nil {
		s.mu.Lock()
		s.decideErr = err
		s.mu.Unlock()
		return err
	}
	for _, msg := range sentMsgs {
		if err := real.SendMsg(msg); err != nil {
			s.mu.Lock()
			s.decideErr = err
			s.mu.Unlock()
			return err
		}
	}
	if err := real.CloseSend(); err != nil {
		s.mu.Lock()
		s.decideErr = err
		s.mu.Unlock()
		return err
	}
	s.mu.Lock()
	s.real = real
	s.mu.Unlock()
	return nil
}

// RecvMsg waits for CloseSend to have run decide() — it never triggers the
// decision itself — then delivers from whichever of the fake or real
// stream decide() selected.
func (s *recordingClientStream) RecvMsg(m any) error {
	select {
	case <-s.decideDone:
	case <-s.ctx.Done():
		return s.ctx.Err()
	}

	s.mu.Lock()
	fake := s.fake
	real := s.real
	decideErr := s.decideErr
	s.mu.Unlock()

	if decideErr != nil {
		return decideErr
	}

	if fake != nil {
		return fake.RecvMsg(m)
	}

	err := real.RecvMsg(m)
	if err == nil {
		if msg, ok := m.(proto.Message); ok {
			if body, merr := proto.Marshal(msg); merr == nil {
				s.mu.Lock()
				s.recvBodies = append(s.recvBodies, body)
				s.mu.Unlock()
			}
		}
		// A client-streaming call's CloseAndRecv issues exactly one RecvMsg
		// and never sees EOF; finalize immediately once it has its reply.
		if s.rpcType == ClientStreaming {
			if s.ctx.Err() != nil {
				s.logger.Debug("call cancelled, not recording", "method", s.method)
				return nil
			}
			s.finalize(nil)
		}
		return nil
	}

	if s.ctx.Err() != nil {
		s.logger.Debug("call cancelled, not recording", "method", s.method)
		return err
	}
	s.finalize(err)
	return err
}

func (s *recordingClientStream) finalize(terminal error) {
	s.mu.Lock()
	if s.finalized {
		s.mu.Unlock()
		return
	}
	s.finalized = true
	bodies := s.recvBodies
	live := s.live
	real := s.real
	s.mu.Unlock()

	var trailer metadata.MD
	if real != nil {
		trailer = real.Trailer()
	}
	if s.sink != nil {
		s.sink.set(trailer)
	}

	st, _ := status.FromError(terminal)
	code := codeName(st.Code())
	if terminal == io.EOF {
		code = codeName(codes.OK)
	}
	var details *string
	if st.Code() != codes.OK {
		msg := st.Message()
		details = &msg
	}

	ep := Episode{Request: live, RPCType: s.rpcType}
	if s.rpcType == ClientStreaming {
		var respBody []byte
		if len(bodies) > 0 {
			respBody = bodies[0]
		}
		ep.Response = ResponseRecord{Body: respBody, Code: code, Details: details, TrailingMetadata: storedFromMD(trailer)}
	} else {
		ep.Streaming = StreamingResponseRecord{Messages: bodies, Code: code, Details: details, TrailingMetadata: storedFromMD(trailer)}
	}
	s.cass.Record(ep)
	s.logger.Debug("recorded episode", "method", s.method, "rpc_type", string(s.rpcType), "code", code)
}

func (s *recordingClientStream) Header() (metadata.MD, error) {
	s.mu.Lock()
	fake, real := s.fake, s.real
	s.mu.Unlock()
	if fake != nil {
		return fake.Header()
	}
	if real != nil {
		return real.Header()
	}
	return nil, nil
}

func (s *recordingClientStream) Trailer() metadata.MD {
	s.mu.Lock()
	fake, real := s.fake, s.real
	s.mu.Unlock()
	if fake != nil {
		return fake.Trailer()
	}
	if real != nil {
		return real.Trailer()
	}
	return nil
}

func (s *recordingClientStream) Context() context.Context { return s.ctx }

// streamingRecordOf normalizes an episode's recorded outcome into a
// StreamingResponseRecord regardless of rpc_type, so fakeClientStream is
// the single playback synthesis path for every streaming shape including
// client-streaming (whose single reply becomes a one-element message list).
func streamingRecordOf(ep Episode, rpcType RPCType) StreamingResponseRecord {
	if rpcType.IsStreamingResponse() {
		return ep.Streaming
	}
	rec := StreamingResponseRecord{
		Code:             ep.Response.Code,
		Details:          ep.Response.Details,
		TrailingMetadata: ep.Response.TrailingMetadata,
	}
	if len(ep.Response.Body) > 0 {
		rec.Messages = [][]byte{ep.Response.Body}
	}
	return rec
}
