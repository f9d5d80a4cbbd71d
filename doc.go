// Package grpcvcr records client-side gRPC interactions to a cassette file
// and replays them later so test suites can run without a live server.
//
// A Cassette holds an ordered list of Episodes, each a request/response pair
// captured from a real call. A Channel (or AsyncChannel) wraps a real
// *grpc.ClientConn; on every outbound call it consults the cassette's
// Matcher: a hit synthesizes a call whose results, status and trailing
// metadata match the recording exactly, a miss forwards to the real
// transport, records what happened, and re-raises it to the caller.
//
//	cass, err := grpcvcr.Open("testdata/users.yaml", grpcvcr.NewEpisodes, nil)
//	ch, err := grpcvcr.Dial(cass, "localhost:50051", grpcvcr.WithDialOptions(grpc.WithTransportCredentials(insecure.NewCredentials())))
//	defer ch.Close()
//	client := pb.NewUserServiceClient(ch)
package grpcvcr
