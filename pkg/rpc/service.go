package rpc

import (
	"context"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "matcher.Matcher"

// MaxMessageSize bounds request and response size on both ends. Score map
// responses carry PNGs and outgrow the 4 MiB gRPC default for photo-sized
// scenes.
const MaxMessageSize = 64 << 20

// Response header keys set by StampServerTimes, unix milliseconds.
const (
	HeaderReceivedMs = "x-received-ms"
	HeaderSentMs     = "x-sent-ms"
)

const (
	MethodListPairs  = "/" + ServiceName + "/ListPairs"
	MethodScorePatch = "/" + ServiceName + "/ScorePatch"
	MethodScoreMap   = "/" + ServiceName + "/ScoreMap"
	MethodSweep      = "/" + ServiceName + "/Sweep"
	MethodBestMatch  = "/" + ServiceName + "/BestMatch"
)

// MatcherServer is the server API for the matcher service.
type MatcherServer interface {
	ListPairs(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ScorePatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ScoreMap(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Sweep(context.Context, *structpb.Struct) (*structpb.Struct, error)
	BestMatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(MatcherServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryCall) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(MatcherServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(MatcherServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var Matcher_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MatcherServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ListPairs",
			Handler:    unaryHandler(MethodListPairs, MatcherServer.ListPairs),
		},
		{
			MethodName: "ScorePatch",
			Handler:    unaryHandler(MethodScorePatch, MatcherServer.ScorePatch),
		},
		{
			MethodName: "ScoreMap",
			Handler:    unaryHandler(MethodScoreMap, MatcherServer.ScoreMap),
		},
		{
			MethodName: "Sweep",
			Handler:    unaryHandler(MethodSweep, MatcherServer.Sweep),
		},
		{
			MethodName: "BestMatch",
			Handler:    unaryHandler(MethodBestMatch, MatcherServer.BestMatch),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "matcher.proto",
}

func RegisterMatcherServer(s grpc.ServiceRegistrar, srv MatcherServer) {
	s.RegisterService(&Matcher_ServiceDesc, srv)
}

// StampServerTimes is a unary interceptor that reports when the request
// arrived and when the response left in the response header.
func StampServerTimes(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	recv := time.Now()
	resp, err := handler(ctx, req)
	md := metadata.Pairs(
		HeaderReceivedMs, strconv.FormatInt(recv.UnixMilli(), 10),
		HeaderSentMs, strconv.FormatInt(time.Now().UnixMilli(), 10),
	)
	grpc.SetHeader(ctx, md)
	return resp, err
}

// ServerOptions are the options every matcher server is built with.
func ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.MaxRecvMsgSize(MaxMessageSize),
		grpc.MaxSendMsgSize(MaxMessageSize),
		grpc.UnaryInterceptor(StampServerTimes),
	}
}

// DialOptions raise the client's message limits to match ServerOptions.
func DialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(MaxMessageSize),
			grpc.MaxCallSendMsgSize(MaxMessageSize),
		),
	}
}
