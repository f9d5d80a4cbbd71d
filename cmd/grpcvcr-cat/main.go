// Command grpcvcr-cat prints a one-line summary of every episode in a
// cassette file. With -descriptor-set it decodes request/response bodies
// to JSON using a compiled FileDescriptorSet instead of showing raw byte
// counts, which is useful when reviewing a cassette diff without also
// having the generated Go types on hand.
package main

import (
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/shhac/grpcvcr"
)

func main() {
	descriptorSet := flag.String("descriptor-set", "", "path to a binary FileDescriptorSet (protoc --descriptor_set_out) used to decode bodies as JSON")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-descriptor-set path.binpb] cassette\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	var decoder *bodyDecoder
	if *descriptorSet != "" {
		d, err := loadBodyDecoder(*descriptorSet)
		if err != nil {
			fmt.Fprintf(os.Stderr, "grpcvcr-cat: %v\n", err)
			os.Exit(1)
		}
		decoder = d
	}

	cass, err := grpcvcr.Open(path, grpcvcr.None, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "grpcvcr-cat: %v\n", err)
		os.Exit(1)
	}

	for i, ep := range cass.Episodes() {
		printEpisode(i, ep, decoder)
	}
}

func printEpisode(index int, ep grpcvcr.Episode, decoder *bodyDecoder) {
	code, details, bodySummary := episodeOutcome(ep, decoder)
	fmt.Printf("%3d  %-10s %-40s req=%s  %s", index, ep.RPCType, ep.Request.Method, summarizeBody(ep.Request.Method, true, ep.Request.Body, decoder), bodySummary)
	fmt.Printf("  code=%s", code)
	if details != "" {
		fmt.Printf("  details=%q", details)
	}
	fmt.Println()
}

func episodeOutcome(ep grpcvcr.Episode, decoder *bodyDecoder) (code, details, bodySummary string) {
	if ep.RPCType.IsStreamingResponse() {
		code = ep.Streaming.Code
		if ep.Streaming.Details != nil {
			details = *ep.Streaming.Details
		}
		parts := make([]string, len(ep.Streaming.Messages))
		for i, m := range ep.Streaming.Messages {
			parts[i] = summarizeBody(ep.Request.Method, false, m, decoder)
		}
		bodySummary = fmt.Sprintf("resp=[%s]", strings.Join(parts, ", "))
		return
	}
	code = ep.Response.Code
	if ep.Response.Details != nil {
		details = *ep.Response.Details
	}
	bodySummary = fmt.Sprintf("resp=%s", summarizeBody(ep.Request.Method, false, ep.Response.Body, decoder))
	return
}

func summarizeBody(method string, isRequest bool, body []byte, decoder *bodyDecoder) string {
	if len(body) == 0 {
		return "(empty)"
	}
	if decoder != nil {
		if json, ok := decoder.decode(method, isRequest, body); ok {
			return json
		}
	}
	encoded := base64.StdEncoding.EncodeToString(body)
	preview := encoded
	if len(preview) > 16 {
		preview = preview[:16] + "..."
	}
	return fmt.Sprintf("%d bytes (%s)", len(body), preview)
}

// bodyDecoder resolves method names to request/response message
// descriptors using a protoc-emitted FileDescriptorSet, and uses
// jhump/protoreflect's dynamic messages to render arbitrary wire bytes as
// JSON without any generated Go types.
type bodyDecoder struct {
	files   map[string]*desc.FileDescriptor
	factory *dynamic.MessageFactory
}

func loadBodyDecoder(path string) (*bodyDecoder, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading descriptor set: %w", err)
	}
	var fdSet descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(raw, &fdSet); err != nil {
		return nil, fmt.Errorf("parsing descriptor set: %w", err)
	}
	files, err := desc.CreateFileDescriptorsFromSet(&fdSet)
	if err != nil {
		return nil, fmt.Errorf("building file descriptors: %w", err)
	}
	return &bodyDecoder{files: files, factory: dynamic.NewMessageFactoryWithDefaults()}, nil
}

// decode looks up method's service in the loaded descriptor set and
// unmarshals body as the request or response message type.
func (d *bodyDecoder) decode(method string, isRequest bool, body []byte) (string, bool) {
	svcName, methodName, ok := splitMethod(method)
	if !ok {
		return "", false
	}

	for _, fd := range d.files {
		svc := fd.FindService(svcName)
		if svc == nil {
			continue
		}
		md := svc.FindMethodByName(methodName)
		if md == nil {
			continue
		}
		var msgDesc *desc.MessageDescriptor
		if isRequest {
			msgDesc = md.GetInputType()
		} else {
			msgDesc = md.GetOutputType()
		}
		msg := d.factory.NewDynamicMessage(msgDesc)
		if err := msg.Unmarshal(body); err != nil {
			return "", false
		}
		jsonBytes, err := msg.MarshalJSON()
		if err != nil {
			return "", false
		}
		return string(jsonBytes), true
	}
	return "", false
}

func splitMethod(method string) (service, name string, ok bool) {
	m := strings.TrimPrefix(method, "/")
	idx := strings.LastIndex(m, "/")
	if idx < 0 {
		return "", "", false
	}
	return m[:idx], m[idx+1:], true
}
