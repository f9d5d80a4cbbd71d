package grpcvcr

import "fmt"

// Error is implemented by every typed failure this package returns. It lets
// callers test for any of them with errors.As and a grpcvcr.Error target
// without needing a common base struct, since Go has no class hierarchy to
// anchor one on. A specific failure is matched with a pointer target, e.g.
// var nf *grpcvcr.CassetteNotFoundError; errors.As(err, &nf).
type Error interface {
	error
	isGrpcvcrError()
}

// CassetteNotFoundError is returned by Open when record_mode is None and the
// cassette file does not exist.
type CassetteNotFoundError struct {
	Path string
}

func (e *CassetteNotFoundError) Error() string {
	return fmt.Sprintf("grpcvcr: cassette not found: %s", e.Path)
}

func (*CassetteNotFoundError) isGrpcvcrError() {}

// NoMatchingInteractionError describes a failure to locate an episode when
// one was expected. The interceptors in this package do not return it: an
// unmatched request on a cassette that cannot record is reported as
// *RecordingDisabledError, which does not wrap this type.
type NoMatchingInteractionError struct {
	Method           string
	Body             []byte
	AvailableMethods []string
}

func (e *NoMatchingInteractionError) Error() string {
	return fmt.Sprintf("grpcvcr: no matching interaction for %s (known methods: %v)", e.Method, e.AvailableMethods)
}

func (*NoMatchingInteractionError) isGrpcvcrError() {}

// RecordingDisabledError is returned at the call site when a cassette locked
// against recording (None, or Once past its empty-at-open window) has no
// matching episode for the live request.
type RecordingDisabledError struct {
	Method string
}

func (e *RecordingDisabledError) Error() string {
	return fmt.Sprintf("grpcvcr: recording disabled, no match for %s", e.Method)
}

func (*RecordingDisabledError) isGrpcvcrError() {}

// CassetteWriteFailureError wraps an I/O or serialization error encountered
// while saving a cassette.
type CassetteWriteFailureError struct {
	Path  string
	Cause error
}

func (e *CassetteWriteFailureError) Error() string {
	return fmt.Sprintf("grpcvcr: failed to write cassette %s: %v", e.Path, e.Cause)
}

func (e *CassetteWriteFailureError) Unwrap() error { return e.Cause }

func (*CassetteWriteFailureError) isGrpcvcrError() {}

// SerializationFailureError wraps a codec error encountered while parsing or
// emitting a cassette document.
type SerializationFailureError struct {
	Message string
	Cause   error
}

func (e *SerializationFailureError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("grpcvcr: serialization failure: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("grpcvcr: serialization failure: %s", e.Message)
}

func (e *SerializationFailureError) Unwrap() error { return e.Cause }

func (*SerializationFailureError) isGrpcvcrError() {}
