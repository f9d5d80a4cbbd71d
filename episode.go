package grpcvcr

// RPCType identifies which of the four gRPC call shapes an Episode records.
type RPCType string

const (
	Unary           RPCType = "unary"
	ServerStreaming RPCType = "server_streaming"
	ClientStreaming RPCType = "client_streaming"
	BidiStreaming   RPCType = "bidi_streaming"
)

// IsStreamingResponse reports whether this shape's outcome is a
// StreamingResponseRecord (server_streaming, bidi_streaming) rather than a
// single ResponseRecord (unary, client_streaming).
func (t RPCType) IsStreamingResponse() bool {
	return t == ServerStreaming || t == BidiStreaming
}

// RequestRecord is one recorded request: the method path, the serialized
// body (the concatenation of every sent message for client-streamed
// shapes), and outgoing metadata.
type RequestRecord struct {
	Method   string
	Body     []byte
	Metadata map[string][]string
}

// ResponseRecord is a non-streaming outcome: unary and client-streaming
// calls resolve to exactly one of these.
type ResponseRecord struct {
	Body             []byte
	Code             string
	Details          *string
	TrailingMetadata map[string][]string
}

// StreamingResponseRecord is a streamed outcome: server-streaming and
// bidi-streaming calls resolve to one of these. Messages received before a
// terminal error are preserved; the error is raised only after the last
// stored message has been yielded.
type StreamingResponseRecord struct {
	Messages         [][]byte
	Code             string
	Details          *string
	TrailingMetadata map[string][]string
}

// Episode is one recorded (request, response, rpc_type) triple. Exactly one
// of Response or Streaming is meaningful, selected by RPCType.IsStreamingResponse.
type Episode struct {
	Request   RequestRecord
	Response  ResponseRecord
	Streaming StreamingResponseRecord
	RPCType   RPCType
}

// metadataEqual compares two ordered header maps for the subset of keys in
// keys, or, when keys is nil, for every key present in either map except
// those in ignore. ignore is not consulted when keys is non-nil.
func metadataEqual(a, b map[string][]string, keys, ignore []string) bool {
	keySet := keys
	if keySet == nil {
		keySet = unionKeys(a, b)
	} else {
		ignore = nil
	}
	ignoreSet := make(map[string]struct{}, len(ignore))
	for _, k := range ignore {
		ignoreSet[k] = struct{}{}
	}
	for _, k := range keySet {
		if _, skip := ignoreSet[k]; skip {
			continue
		}
		if !stringSlicesEqual(a[k], b[k]) {
			return false
		}
	}
	return true
}

func unionKeys(a, b map[string][]string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	keys := make([]string, 0, len(a)+len(b))
	for k := range a {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	for k := range b {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	return keys
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
