package grpcvcr

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"

	"github.com/shhac/grpcvcr/internal/vcrlog"
)

// ChannelOption configures a Channel or AsyncChannel at Dial time.
type ChannelOption func(*channelConfig)

type channelConfig struct {
	logger   *slog.Logger
	dialOpts []grpc.DialOption
}

// WithLogger attaches a structured logger to the channel's interceptors.
// Without this option, logging is a no-op (vcrlog.Nop).
func WithLogger(logger *slog.Logger) ChannelOption {
	return func(c *channelConfig) { c.logger = logger }
}

// WithDialOptions forwards opts to the underlying grpc.NewClient call,
// e.g. to supply transport credentials or keepalive parameters. The core
// treats these as opaque pass-throughs, per scope.
func WithDialOptions(opts ...grpc.DialOption) ChannelOption {
	return func(c *channelConfig) { c.dialOpts = append(c.dialOpts, opts...) }
}

func newChannelConfig(opts []ChannelOption) channelConfig {
	cfg := channelConfig{logger: vcrlog.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Channel is the blocking recording channel: it wraps a real
// *grpc.ClientConn with the unary and stream interceptors, using the
// slice-indexed (non-yielding) fake stream for playback.
type Channel struct {
	conn *grpc.ClientConn
	cass *Cassette
}

var _ grpc.ClientConnInterface = (*Channel)(nil)

// Dial opens a real gRPC connection to target and wraps it with cass's
// interceptor pair.
func Dial(cass *Cassette, target string, opts ...ChannelOption) (*Channel, error) {
	cfg := newChannelConfig(opts)
	return dialBuiltin(cass, target, newSyncFakeStream, cfg)
}

func dialBuiltin(cass *Cassette, target string, fakeCtor fakeStreamCtor, cfg channelConfig) (*Channel, error) {
	allOpts := append([]grpc.DialOption{
		grpc.WithChainUnaryInterceptor(unaryInterceptor(cass, cfg.logger)),
		grpc.WithChainStreamInterceptor(streamInterceptor(cass, fakeCtor, cfg.logger)),
	}, cfg.dialOpts...)

	conn, err := grpc.NewClient(target, allOpts...)
	if err != nil {
		return nil, err
	}
	return &Channel{conn: conn, cass: cass}, nil
}

// Invoke implements grpc.ClientConnInterface, dispatching to the wrapped
// connection (and therefore through the interceptor pair).
func (ch *Channel) Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error {
	return ch.conn.Invoke(ctx, method, args, reply, opts...)
}

// NewStream implements grpc.ClientConnInterface.
func (ch *Channel) NewStream(ctx context.Context, desc *grpc.StreamDesc, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	return ch.conn.NewStream(ctx, desc, method, opts...)
}

// Cassette returns the cassette backing this channel.
func (ch *Channel) Cassette() *Cassette { return ch.cass }

// Close closes the underlying transport and saves the cassette (a no-op
// save if nothing new was recorded).
func (ch *Channel) Close() error {
	closeErr := ch.conn.Close()
	if err := ch.cass.Save(); err != nil {
		if closeErr != nil {
			return closeErr
		}
		return err
	}
	return closeErr
}

// With runs fn with the channel, guaranteeing Close (and therefore
// cassette.Save) runs on every exit path, including a panic.
func (ch *Channel) With(fn func(*Channel) error) (err error) {
	defer func() {
		closeErr := ch.Close()
		if err == nil {
			err = closeErr
		}
	}()
	return fn(ch)
}

// AsyncChannel is the cooperative recording channel: identical wiring to
// Channel, but playback delivers streamed messages through a
// goroutine-pumped channel so a caller demonstrably yields to the runtime
// scheduler between messages.
type AsyncChannel struct {
	conn *grpc.ClientConn
	cass *Cassette
}

var _ grpc.ClientConnInterface = (*AsyncChannel)(nil)

// DialAsync is the cooperative-model counterpart to Dial.
func DialAsync(cass *Cassette, target string, opts ...ChannelOption) (*AsyncChannel, error) {
	cfg := newChannelConfig(opts)
	ch, err := dialBuiltin(cass, target, newPumpedFakeStream, cfg)
	if err != nil {
		return nil, err
	}
	return &AsyncChannel{conn: ch.conn, cass: ch.cass}, nil
}

func (ch *AsyncChannel) Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error {
	return ch.conn.Invoke(ctx, method, args, reply, opts...)
}

func (ch *AsyncChannel) NewStream(ctx context.Context, desc *grpc.StreamDesc, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	return ch.conn.NewStream(ctx, desc, method, opts...)
}

func (ch *AsyncChannel) Cassette() *Cassette { return ch.cass }

func (ch *AsyncChannel) Close() error {
	closeErr := ch.conn.Close()
	if err := ch.cass.Save(); err != nil {
		if closeErr != nil {
			return closeErr
		}
		return err
	}
	return closeErr
}

func (ch *AsyncChannel) With(fn func(*AsyncChannel) error) (err error) {
	defer func() {
		closeErr := ch.Close()
		if err == nil {
			err = closeErr
		}
	}()
	return fn(ch)
}
