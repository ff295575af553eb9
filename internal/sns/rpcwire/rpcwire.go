// Package rpcwire defines the SNS RPC surface: the message types exchanged
// between client and server, and the gRPC plumbing (ServiceDesc, codec)
// needed to serve and call them without a protoc-generated stub. The RPC
// codegen toolchain is explicitly out of scope as an external collaborator,
// so this package plays its role by hand: a literal, hand-written
// grpc.ServiceDesc registered with a gob-based encoding.Codec.
package rpcwire

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// Request carries the calling username and its positional arguments, mirroring
// the original tsd/tsc RPC's single generic request shape.
type Request struct {
	Username  string
	Arguments []string
}

// Reply carries a free-form status message plus the two list-shaped
// results List returns (Login, Follow and UnFollow fill in only Msg).
type Reply struct {
	Msg             string
	AllUsers        []string
	FollowingUsers  []string
}

// PostMsg is one timeline entry, flowing in both directions on the
// Timeline stream: the client's own new post, and every post the server
// fans out to it.
type PostMsg struct {
	Username  string
	Msg       string
	Timestamp int64
}

// ServiceName is the gRPC service name under which SNSService is
// registered, used by both server registration and client stream paths.
const ServiceName = "sns.SNSService"

// CodecName is the subtype under which the gob codec is registered and
// forced via grpc.ForceCodec/grpc.CallContentSubtype.
const CodecName = "gob"

// SNSServer is implemented by the SNS service handlers.
type SNSServer interface {
	Login(ctx context.Context, req *Request) (*Reply, error)
	List(ctx context.Context, req *Request) (*Reply, error)
	Follow(ctx context.Context, req *Request) (*Reply, error)
	UnFollow(ctx context.Context, req *Request) (*Reply, error)
	Timeline(stream grpc.BidiStreamingServer[PostMsg, PostMsg]) error
}

// ServiceDesc is the hand-written analog of what protoc-gen-go-grpc would
// otherwise generate for a service with four unary RPCs and one
// bidirectional stream.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SNSServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Login", Handler: loginHandler},
		{MethodName: "List", Handler: listHandler},
		{MethodName: "Follow", Handler: followHandler},
		{MethodName: "UnFollow", Handler: unfollowHandler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Timeline",
			Handler:       timelineHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "sns.proto",
}

func loginHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return unaryHandler(srv.(SNSServer).Login, ctx, dec, interceptor, ServiceName+"/Login")
}

func listHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return unaryHandler(srv.(SNSServer).List, ctx, dec, interceptor, ServiceName+"/List")
}

func followHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return unaryHandler(srv.(SNSServer).Follow, ctx, dec, interceptor, ServiceName+"/Follow")
}

func unfollowHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return unaryHandler(srv.(SNSServer).UnFollow, ctx, dec, interceptor, ServiceName+"/UnFollow")
}

func unaryHandler(
	fn func(context.Context, *Request) (*Reply, error),
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
	fullMethod string,
) (any, error) {
	in := new(Request)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return fn(ctx, in)
	}
	info := &grpc.UnaryServerInfo{FullMethod: fullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return fn(ctx, req.(*Request))
	}
	return interceptor(ctx, in, info, handler)
}

func timelineHandler(srv any, stream grpc.ServerStream) error {
	return srv.(SNSServer).Timeline(&timelineServerStream{stream})
}

type timelineServerStream struct {
	grpc.ServerStream
}

func (s *timelineServerStream) Send(m *PostMsg) error  { return s.ServerStream.SendMsg(m) }
func (s *timelineServerStream) Recv() (*PostMsg, error) {
	m := new(PostMsg)
	if err := s.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// SNSClient is the client-side handle used by sns-client.
type SNSClient interface {
	Login(ctx context.Context, req *Request, opts ...grpc.CallOption) (*Reply, error)
	List(ctx context.Context, req *Request, opts ...grpc.CallOption) (*Reply, error)
	Follow(ctx context.Context, req *Request, opts ...grpc.CallOption) (*Reply, error)
	UnFollow(ctx context.Context, req *Request, opts ...grpc.CallOption) (*Reply, error)
	Timeline(ctx context.Context, opts ...grpc.CallOption) (grpc.BidiStreamingClient[PostMsg, PostMsg], error)
}

type snsClient struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a *grpc.ClientConn (already dialed with
// grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName))) in an
// SNSClient.
func NewClient(cc grpc.ClientConnInterface) SNSClient {
	return &snsClient{cc: cc}
}

func (c *snsClient) Login(ctx context.Context, req *Request, opts ...grpc.CallOption) (*Reply, error) {
	out := new(Reply)
	if err := c.cc.Invoke(ctx, ServiceName+"/Login", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *snsClient) List(ctx context.Context, req *Request, opts ...grpc.CallOption) (*Reply, error) {
	out := new(Reply)
	if err := c.cc.Invoke(ctx, ServiceName+"/List", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *snsClient) Follow(ctx context.Context, req *Request, opts ...grpc.CallOption) (*Reply, error) {
	out := new(Reply)
	if err := c.cc.Invoke(ctx, ServiceName+"/Follow", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *snsClient) UnFollow(ctx context.Context, req *Request, opts ...grpc.CallOption) (*Reply, error) {
	out := new(Reply)
	if err := c.cc.Invoke(ctx, ServiceName+"/UnFollow", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

var timelineStreamDesc = &grpc.StreamDesc{
	StreamName:    "Timeline",
	ServerStreams: true,
	ClientStreams: true,
}

func (c *snsClient) Timeline(ctx context.Context, opts ...grpc.CallOption) (grpc.BidiStreamingClient[PostMsg, PostMsg], error) {
	stream, err := c.cc.NewStream(ctx, timelineStreamDesc, ServiceName+"/Timeline", opts...)
	if err != nil {
		return nil, err
	}
	return &timelineClientStream{stream}, nil
}

type timelineClientStream struct {
	grpc.ClientStream
}

func (s *timelineClientStream) Send(m *PostMsg) error { return s.ClientStream.SendMsg(m) }
func (s *timelineClientStream) Recv() (*PostMsg, error) {
	m := new(PostMsg)
	if err := s.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Codec is a gob-based encoding.Codec, standing in for the protobuf wire
// format a codegen toolchain would otherwise produce.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("rpcwire: gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (Codec) Unmarshal(data []byte, v any) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil && err != io.EOF {
		return fmt.Errorf("rpcwire: gob decode: %w", err)
	}
	return nil
}

func (Codec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(Codec{})
}
