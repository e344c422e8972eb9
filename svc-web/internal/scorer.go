package internal

import (
	"context"
	"errors"
	"fmt"
	"image"

	api "github.com/etesami/template-matching-demo/api"
	"github.com/etesami/template-matching-demo/pkg/engine"
	"github.com/etesami/template-matching-demo/pkg/utils"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrMatcherUnavailable = errors.New("matcher is not connected")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrResponseTooLarge   = errors.New("matcher response too large")
)

// Scorer is implemented by the in-process engine and by the remote matcher.
type Scorer interface {
	Pairs(ctx context.Context) ([]api.PairInfo, error)
	ScorePatch(ctx context.Context, pair string, center image.Point) (*api.PatchResult, error)
	ScoreMap(ctx context.Context, pair string, threshold float64) (*api.MapResult, error)
	Sweep(ctx context.Context, pair string, alpha float64) (*api.SweepResult, error)
	BestMatch(ctx context.Context, pair string) (api.Match, error)
}

var _ Scorer = (*engine.Engine)(nil)

// RemoteScorer forwards every call to the matcher service through the
// client currently held by ClientRef.
type RemoteScorer struct {
	ClientRef *utils.GrpcClient
}

// fromStatus turns gRPC status codes back into the local sentinel errors
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%w: %s", engine.ErrUnknownPair, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrInvalidArgument, st.Message())
	case codes.ResourceExhausted:
		return fmt.Errorf("%w: %s", ErrResponseTooLarge, st.Message())
	case codes.Unavailable:
		return fmt.Errorf("%w: %s", ErrMatcherUnavailable, st.Message())
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	}
	return err
}

func (r *RemoteScorer) Pairs(ctx context.Context) ([]api.PairInfo, error) {
	c := r.ClientRef.Load()
	if c == nil {
		return nil, ErrMatcherUnavailable
	}
	pairs, err := c.ListPairs(ctx)
	return pairs, fromStatus(err)
}

func (r *RemoteScorer) ScorePatch(ctx context.Context, pair string, center image.Point) (*api.PatchResult, error) {
	c := r.ClientRef.Load()
	if c == nil {
		return nil, ErrMatcherUnavailable
	}
	res, err := c.ScorePatch(ctx, pair, center)
	return res, fromStatus(err)
}

func (r *RemoteScorer) ScoreMap(ctx context.Context, pair string, threshold float64) (*api.MapResult, error) {
	c := r.ClientRef.Load()
	if c == nil {
		return nil, ErrMatcherUnavailable
	}
	res, err := c.ScoreMap(ctx, pair, threshold)
	return res, fromStatus(err)
}

func (r *RemoteScorer) Sweep(ctx context.Context, pair string, alpha float64) (*api.SweepResult, error) {
	c := r.ClientRef.Load()
	if c == nil {
		return nil, ErrMatcherUnavailable
	}
	res, err := c.Sweep(ctx, pair, alpha)
	return res, fromStatus(err)
}

func (r *RemoteScorer) BestMatch(ctx context.Context, pair string) (api.Match, error) {
	c := r.ClientRef.Load()
	if c == nil {
		return api.Match{}, ErrMatcherUnavailable
	}
	best, err := c.BestMatch(ctx, pair)
	return best, fromStatus(err)
}
