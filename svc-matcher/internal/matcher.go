package internal

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/etesami/template-matching-demo/pkg/engine"
	"github.com/etesami/template-matching-demo/pkg/matching"
	"github.com/etesami/template-matching-demo/pkg/rpc"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Server exposes an engine over the matcher gRPC service
type Server struct {
	Engine *engine.Engine
}

var _ rpc.MatcherServer = (*Server)(nil)

// toStatus maps engine errors onto gRPC status codes
func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, engine.ErrUnknownPair):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, matching.ErrTemplateTooLarge), errors.Is(err, matching.ErrEmptyImage):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func logRequest(method string, st time.Time, err error) {
	if err != nil {
		log.Printf("%s failed after [%s]: %v\n", method, time.Since(st), err)
		return
	}
	log.Printf("%s served at [%s] in [%s]\n", method, st.Format("2006-01-02 15:04:05"), time.Since(st))
}

func (s *Server) ListPairs(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	st := time.Now()
	pairs, err := s.Engine.Pairs(ctx)
	logRequest("ListPairs", st, err)
	if err != nil {
		return nil, toStatus(err)
	}
	return rpc.EncodePairs(pairs)
}

func (s *Server) ScorePatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	st := time.Now()
	pair, center, err := rpc.ParseScorePatchRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	res, err := s.Engine.ScorePatch(ctx, pair, center)
	logRequest("ScorePatch", st, err)
	if err != nil {
		return nil, toStatus(err)
	}
	return rpc.EncodePatchResult(res)
}

func (s *Server) ScoreMap(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	st := time.Now()
	pair, threshold, err := rpc.ParseScoreMapRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	res, err := s.Engine.ScoreMap(ctx, pair, threshold)
	logRequest("ScoreMap", st, err)
	if err != nil {
		return nil, toStatus(err)
	}
	return rpc.EncodeMapResult(res)
}

func (s *Server) Sweep(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	st := time.Now()
	pair, alpha, err := rpc.ParseSweepRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	res, err := s.Engine.Sweep(ctx, pair, alpha)
	logRequest("Sweep", st, err)
	if err != nil {
		return nil, toStatus(err)
	}
	return rpc.EncodeSweepResult(res)
}

func (s *Server) BestMatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	st := time.Now()
	pair, err := rpc.ParseBestMatchRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	best, err := s.Engine.BestMatch(ctx, pair)
	logRequest("BestMatch", st, err)
	if err != nil {
		return nil, toStatus(err)
	}
	return rpc.EncodeMatch(best)
}
