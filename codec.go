package grpcvcr

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const currentSchemaVersion = 1

// wireDocument is the on-disk shape shared by the JSON and YAML encodings.
// encoding/json and gopkg.in/yaml.v3 both sort map[string][]string keys
// lexicographically when marshaling, so the same struct tags drive a
// deterministic document in either format without any custom
// Marshal/Unmarshal methods. encoding/json writes []byte fields as base64
// text; yaml.v3 writes them as a sequence of byte values, not as base64.
type wireDocument struct {
	Version      int               `json:"version" yaml:"version"`
	Interactions []wireInteraction `json:"interactions" yaml:"interactions"`
}

type wireInteraction struct {
	Request  wireRequest  `json:"request" yaml:"request"`
	Response wireResponse `json:"response" yaml:"response"`
	RPCType  string       `json:"rpc_type" yaml:"rpc_type"`
}

type wireRequest struct {
	Method   string              `json:"method" yaml:"method"`
	Body     []byte              `json:"body" yaml:"body"`
	Metadata map[string][]string `json:"metadata" yaml:"metadata"`
}

type wireResponse struct {
	Body             []byte              `json:"body" yaml:"body"`
	Messages         [][]byte            `json:"messages" yaml:"messages"`
	Code             string              `json:"code" yaml:"code"`
	Details          *string             `json:"details" yaml:"details"`
	TrailingMetadata map[string][]string `json:"trailing_metadata" yaml:"trailing_metadata"`
}

func usesJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

func decodeDocument(path string, data []byte) (wireDocument, error) {
	var doc wireDocument
	var err error
	if usesJSON(path) {
		err = json.Unmarshal(data, &doc)
	} else {
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return wireDocument{}, &SerializationFailureError{Message: "malformed cassette document", Cause: err}
	}
	return doc, nil
}

func encodeDocument(path string, doc wireDocument) ([]byte, error) {
	if usesJSON(path) {
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, &SerializationFailureError{Message: "failed to encode cassette as JSON", Cause: err}
		}
		return append(data, '\n'), nil
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, &SerializationFailureError{Message: "failed to encode cassette as YAML", Cause: err}
	}
	return data, nil
}

// loadEpisodes reads and decodes the cassette at path. A failure to read
// the file is returned as the underlying *os.PathError, so callers can
// distinguish a missing file with os.IsNotExist; a decode or validation
// failure is a *SerializationFailureError.
func loadEpisodes(path string) ([]Episode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	doc, err := decodeDocument(path, data)
	if err != nil {
		return nil, err
	}

	version := doc.Version
	if version == 0 {
		version = 1
	}
	if version != currentSchemaVersion {
		return nil, &SerializationFailureError{Message: fmt.Sprintf("unsupported cassette schema version %d", version)}
	}

	episodes := make([]Episode, 0, len(doc.Interactions))
	for i, wi := range doc.Interactions {
		ep, err := episodeFromWire(wi)
		if err != nil {
			return nil, &SerializationFailureError{Message: fmt.Sprintf("interaction %d", i), Cause: err}
		}
		episodes = append(episodes, ep)
	}
	return episodes, nil
}

// saveEpisodes atomically writes episodes to path, creating parent
// directories as needed.
func saveEpisodes(path string, episodes []Episode) error {
	doc := wireDocument{
		Version:      currentSchemaVersion,
		Interactions: make([]wireInteraction, len(episodes)),
	}
	for i, ep := range episodes {
		doc.Interactions[i] = episodeToWire(ep)
	}

	data, err := encodeDocument(path, doc)
	if err != nil {
		return &CassetteWriteFailureError{Path: path, Cause: err}
	}

	if err := atomicWriteFile(path, data, 0o644); err != nil {
		return &CassetteWriteFailureError{Path: path, Cause: err}
	}
	return nil
}

// atomicWriteFile writes data to a temp file alongside path, fsyncs it, and
// renames it into place so a crash mid-write never leaves a truncated or
// half-written cassette on disk.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".cassette-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func episodeFromWire(wi wireInteraction) (Episode, error) {
	// yaml.v3 decodes an empty sequence or mapping into a non-nil empty
	// value; normalize bodies and metadata maps so an absent value loads as
	// nil in either format.
	if len(wi.Request.Body) == 0 {
		wi.Request.Body = nil
	}
	if len(wi.Request.Metadata) == 0 {
		wi.Request.Metadata = nil
	}
	if len(wi.Response.Body) == 0 {
		wi.Response.Body = nil
	}
	if len(wi.Response.TrailingMetadata) == 0 {
		wi.Response.TrailingMetadata = nil
	}

	rpcType := RPCType(wi.RPCType)
	ep := Episode{
		Request: RequestRecord{
			Method:   wi.Request.Method,
			Body:     wi.Request.Body,
			Metadata: wi.Request.Metadata,
		},
		RPCType: rpcType,
	}

	if rpcType.IsStreamingResponse() {
		if len(wi.Response.Body) > 0 {
			return Episode{}, fmt.Errorf("rpc_type %q has a streaming response but a non-empty body is also set", wi.RPCType)
		}
		ep.Streaming = StreamingResponseRecord{
			Messages:         wi.Response.Messages,
			Code:             wi.Response.Code,
			Details:          wi.Response.Details,
			TrailingMetadata: wi.Response.TrailingMetadata,
		}
	} else {
		if len(wi.Response.Messages) > 0 {
			return Episode{}, fmt.Errorf("rpc_type %q has a non-streaming response but messages are also set", wi.RPCType)
		}
		ep.Response = ResponseRecord{
			Body:             wi.Response.Body,
			Code:             wi.Response.Code,
			Details:          wi.Response.Details,
			TrailingMetadata: wi.Response.TrailingMetadata,
		}
	}
	return ep, nil
}

func episodeToWire(ep Episode) wireInteraction {
	wi := wireInteraction{
		Request: wireRequest{
			Method:   ep.Request.Method,
			Body:     ep.Request.Body,
			Metadata: ep.Request.Metadata,
		},
		RPCType: string(ep.RPCType),
	}

	if ep.RPCType.IsStreamingResponse() {
		wi.Response = wireResponse{
			Messages:         ep.Streaming.Messages,
			Code:             ep.Streaming.Code,
			Details:          ep.Streaming.Details,
			TrailingMetadata: ep.Streaming.TrailingMetadata,
		}
	} else {
		wi.Response = wireResponse{
			Body:             ep.Response.Body,
			Code:             ep.Response.Code,
			Details:          ep.Response.Details,
			TrailingMetadata: ep.Response.TrailingMetadata,
		}
	}
	return wi
}
