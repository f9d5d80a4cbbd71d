package grpcvcr

import "google.golang.org/grpc/codes"

// codeNames gives the canonical gRPC status code name for each codes.Code
// value, e.g. "NOT_FOUND" rather than codes.Code.String()'s "NotFound".
// Cassettes store and compare codes by this canonical name so they read
// the same across every gRPC client library, not just this one.
var codeNames = [...]string{
	codes.OK:                 "OK",
	codes.Canceled:           "CANCELLED",
	codes.Unknown:            "UNKNOWN",
	codes.InvalidArgument:    "INVALID_ARGUMENT",
	codes.DeadlineExceeded:   "DEADLINE_EXCEEDED",
	codes.NotFound:           "NOT_FOUND",
	codes.AlreadyExists:      "ALREADY_EXISTS",
	codes.PermissionDenied:   "PERMISSION_DENIED",
	codes.ResourceExhausted:  "RESOURCE_EXHAUSTED",
	codes.FailedPrecondition: "FAILED_PRECONDITION",
	codes.Aborted:            "ABORTED",
	codes.OutOfRange:         "OUT_OF_RANGE",
	codes.Unimplemented:      "UNIMPLEMENTED",
	codes.Internal:           "INTERNAL",
	codes.Unavailable:        "UNAVAILABLE",
	codes.DataLoss:           "DATA_LOSS",
	codes.Unauthenticated:    "UNAUTHENTICATED",
}

var namesToCode = func() map[string]codes.Code {
	m := make(map[string]codes.Code, len(codeNames))
	for code, name := range codeNames {
		m[name] = codes.Code(code)
	}
	return m
}()

func codeName(c codes.Code) string {
	if int(c) < len(codeNames) {
		return codeNames[c]
	}
	return c.String()
}

func codeFromName(name string) codes.Code {
	if c, ok := namesToCode[name]; ok {
		return c
	}
	return codes.Unknown
}
