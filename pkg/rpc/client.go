package rpc

import (
	"context"
	"image"
	"strconv"
	"time"

	api "github.com/etesami/template-matching-demo/api"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// CallStats describes one finished call. RemoteReceived and RemoteSent are
// zero when the server did not stamp its response header.
type CallStats struct {
	Method         string
	SentBytes      int
	ReceivedBytes  int
	Sent           time.Time
	Received       time.Time
	RemoteReceived time.Time
	RemoteSent     time.Time
	Err            error
}

// CallObserver is notified after every call.
type CallObserver func(CallStats)

// MatcherClient is a typed client for the matcher service.
type MatcherClient struct {
	cc       grpc.ClientConnInterface
	observer CallObserver
}

func NewMatcherClient(cc grpc.ClientConnInterface) *MatcherClient {
	return &MatcherClient{cc: cc}
}

// WithObserver returns a copy of the client that reports every call to fn.
func (c *MatcherClient) WithObserver(fn CallObserver) *MatcherClient {
	return &MatcherClient{cc: c.cc, observer: fn}
}

func headerTime(md metadata.MD, key string) time.Time {
	v := md.Get(key)
	if len(v) == 0 {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(v[0], 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func (c *MatcherClient) invoke(ctx context.Context, method string, in *structpb.Struct) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	var header metadata.MD
	st := time.Now()
	err := c.cc.Invoke(ctx, method, in, out, grpc.Header(&header))
	if c.observer != nil {
		stats := CallStats{
			Method:         method,
			SentBytes:      proto.Size(in),
			Sent:           st,
			Received:       time.Now(),
			RemoteReceived: headerTime(header, HeaderReceivedMs),
			RemoteSent:     headerTime(header, HeaderSentMs),
			Err:            err,
		}
		if err == nil {
			stats.ReceivedBytes = proto.Size(out)
		}
		c.observer(stats)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *MatcherClient) ListPairs(ctx context.Context) ([]api.PairInfo, error) {
	out, err := c.invoke(ctx, MethodListPairs, NewListPairsRequest())
	if err != nil {
		return nil, err
	}
	return DecodePairs(out), nil
}

func (c *MatcherClient) ScorePatch(ctx context.Context, pair string, center image.Point) (*api.PatchResult, error) {
	in, err := NewScorePatchRequest(pair, center)
	if err != nil {
		return nil, err
	}
	out, err := c.invoke(ctx, MethodScorePatch, in)
	if err != nil {
		return nil, err
	}
	return DecodePatchResult(out)
}

func (c *MatcherClient) ScoreMap(ctx context.Context, pair string, threshold float64) (*api.MapResult, error) {
	in, err := NewScoreMapRequest(pair, threshold)
	if err != nil {
		return nil, err
	}
	out, err := c.invoke(ctx, MethodScoreMap, in)
	if err != nil {
		return nil, err
	}
	return DecodeMapResult(out)
}

// BestMatch returns only the highest scoring placement, without images.
func (c *MatcherClient) BestMatch(ctx context.Context, pair string) (api.Match, error) {
	in, err := NewBestMatchRequest(pair)
	if err != nil {
		return api.Match{}, err
	}
	out, err := c.invoke(ctx, MethodBestMatch, in)
	if err != nil {
		return api.Match{}, err
	}
	return DecodeMatch(out), nil
}

func (c *MatcherClient) Sweep(ctx context.Context, pair string, alpha float64) (*api.SweepResult, error) {
	in, err := NewSweepRequest(pair, alpha)
	if err != nil {
		return nil, err
	}
	out, err := c.invoke(ctx, MethodSweep, in)
	if err != nil {
		return nil, err
	}
	return DecodeSweepResult(out)
}
