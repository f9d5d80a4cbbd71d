package grpcvcr

import (
	"context"
	"sync"

	"google.golang.org/grpc/metadata"
)

// trailerSinkKey is the context key under which a *trailerHolder is stored.
type trailerSinkKey struct{}

// trailerHolder collects trailing metadata populated by an interceptor and
// exposed to the caller through the func() metadata.MD returned by
// WithTrailerSink.
type trailerHolder struct {
	mu sync.Mutex
	md metadata.MD
}

func (h *trailerHolder) set(md metadata.MD) {
	h.mu.Lock()
	h.md = md
	h.mu.Unlock()
}

func (h *trailerHolder) get() metadata.MD {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.md
}

// WithTrailerSink attaches a trailer collector to ctx and returns the
// derived context together with a function that reads whatever trailing
// metadata the call populated.
//
// grpc.CallOption's before/after hooks used by the standard
// grpc.Trailer(&md) option are unexported, so a pure interceptor cannot
// populate an arbitrary caller-supplied option on the playback path
// without performing a real call. WithTrailerSink works identically on
// both the record and playback paths: the unary and stream interceptors in
// this package populate it whenever a trailer sink is present in the
// call's context, in addition to honoring grpc.Trailer on the record path.
func WithTrailerSink(ctx context.Context) (context.Context, func() metadata.MD) {
	holder := &trailerHolder{}
	return context.WithValue(ctx, trailerSinkKey{}, holder), holder.get
}

func trailerSinkFromContext(ctx context.Context) *trailerHolder {
	holder, _ := ctx.Value(trailerSinkKey{}).(*trailerHolder)
	return holder
}
