package engine

import (
	"context"
	"encoding/binary"
	"image"
	"log"
	"time"

	api "github.com/etesami/template-matching-demo/api"
	"github.com/etesami/template-matching-demo/pkg/cache"
	"github.com/etesami/template-matching-demo/pkg/matching"
	"github.com/etesami/template-matching-demo/pkg/metric"
	"github.com/etesami/template-matching-demo/pkg/registry"
	"github.com/etesami/template-matching-demo/pkg/render"
)

// ErrUnknownPair is returned (wrapped) for a pair name not in the registry.
var ErrUnknownPair = registry.ErrUnknownPair

const (
	DefaultCacheSize     = 16
	DefaultMaxCandidates = 500

	// IoU above which overlapping candidates collapse into one peak
	peakOverlap = 0.3
)

// Config holds the engine tunables
type Config struct {
	CacheSize     int
	MaxCandidates int
}

// Engine scores registered pairs. It is safe for concurrent use.
type Engine struct {
	pairs         *registry.Registry
	maps          *cache.Cache[*matching.ScoreMap]
	metric        *metric.Metric
	maxCandidates int
}

func New(pairs *registry.Registry, m *metric.Metric, conf Config) *Engine {
	if conf.CacheSize <= 0 {
		conf.CacheSize = DefaultCacheSize
	}
	if conf.MaxCandidates <= 0 {
		conf.MaxCandidates = DefaultMaxCandidates
	}
	return &Engine{
		pairs:         pairs,
		maps:          cache.New[*matching.ScoreMap](conf.CacheSize),
		metric:        m,
		maxCandidates: conf.MaxCandidates,
	}
}

func (e *Engine) CacheStats() cache.Stats {
	return e.maps.Stats()
}

func elapsedMs(st time.Time) float64 {
	return float64(time.Since(st).Microseconds()) / 1000.0
}

func (e *Engine) Pairs(ctx context.Context) ([]api.PairInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.pairs.List(), nil
}

// ScorePatch extracts the template-sized patch centered at center and scores
// it against the template.
func (e *Engine) ScorePatch(ctx context.Context, name string, center image.Point) (*api.PatchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pair, err := e.pairs.Get(name)
	if err != nil {
		return nil, err
	}

	st := time.Now()
	size := image.Pt(pair.Template.Cols(), pair.Template.Rows())
	patch, bounds := matching.ExtractPatch(pair.Scene, center, size)
	defer patch.Close()

	score := matching.Score(pair.Template, patch)
	q := matching.Grade(score)

	cmp, err := render.Comparison(pair.Template, patch)
	if err != nil {
		return nil, err
	}
	defer cmp.Close()
	png, err := render.EncodePNG(cmp)
	if err != nil {
		return nil, err
	}

	ms := elapsedMs(st)
	e.metric.AddProcessingTime("score_patch", ms)
	e.metric.AddScore(score)
	return &api.PatchResult{
		Pair:        name,
		Center:      api.PointOf(center),
		Bounds:      api.BoxOf(bounds),
		Score:       score,
		Quality:     string(q),
		Explanation: q.Explanation(),
		Comparison:  png,
		ElapsedMs:   ms,
	}, nil
}

// scoreMap returns the memoized score map of the pair.
func (e *Engine) scoreMap(pair *registry.Pair) (*matching.ScoreMap, bool, error) {
	key := mapKey(pair)
	sm, hit, err := e.maps.GetOrCompute(key, func() (*matching.ScoreMap, error) {
		st := time.Now()
		sm, err := matching.ComputeScoreMap(pair.Scene, pair.Template)
		if err != nil {
			return nil, err
		}
		e.metric.AddProcessingTime("score_map", elapsedMs(st))
		log.Printf("Computed %dx%d score map for pair %s\n", sm.Rows, sm.Cols, pair.Name)
		return sm, nil
	})
	e.metric.AddCacheLookup(hit)
	return sm, hit, err
}

func mapKey(pair *registry.Pair) cache.Key {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(pair.TemplateKey))
	binary.LittleEndian.PutUint64(buf[8:], uint64(pair.SceneKey))
	return cache.KeyOf([]byte("score_map"), buf[:])
}

func toMatch(c matching.Candidate) api.Match {
	return api.Match{X: c.Location.X, Y: c.Location.Y, Score: c.Score}
}

func toMatches(cands []matching.Candidate) []api.Match {
	out := make([]api.Match, len(cands))
	for i, c := range cands {
		out[i] = toMatch(c)
	}
	return out
}

// BestMatch returns the top-left of the highest scoring placement without
// rendering any images.
func (e *Engine) BestMatch(ctx context.Context, name string) (api.Match, error) {
	if err := ctx.Err(); err != nil {
		return api.Match{}, err
	}
	pair, err := e.pairs.Get(name)
	if err != nil {
		return api.Match{}, err
	}
	sm, _, err := e.scoreMap(pair)
	if err != nil {
		return api.Match{}, err
	}
	return toMatch(sm.Best()), nil
}

// ScoreMap scores the template at every placement in the scene. A threshold
// of zero or less uses the pair's own threshold.
func (e *Engine) ScoreMap(ctx context.Context, name string, threshold float64) (*api.MapResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pair, err := e.pairs.Get(name)
	if err != nil {
		return nil, err
	}
	if threshold <= 0 {
		threshold = pair.Threshold
	}

	st := time.Now()
	sm, hit, err := e.scoreMap(pair)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size := image.Pt(pair.Template.Cols(), pair.Template.Rows())
	cands, total := sm.Top(threshold, e.maxCandidates)
	peaks := matching.Suppress(cands, size, peakOverlap)

	heat, err := render.Heatmap(sm)
	if err != nil {
		return nil, err
	}
	defer heat.Close()
	heatPNG, err := render.EncodePNG(heat)
	if err != nil {
		return nil, err
	}
	det := render.Detections(pair.Scene, cands, size)
	defer det.Close()
	detPNG, err := render.EncodePNG(det)
	if err != nil {
		return nil, err
	}

	lo, hi := sm.MinMax()
	ms := elapsedMs(st)
	e.metric.AddProcessingTime("map_result", ms)
	return &api.MapResult{
		Pair:       name,
		Rows:       sm.Rows,
		Cols:       sm.Cols,
		Min:        lo,
		Max:        hi,
		Threshold:  threshold,
		Best:       toMatch(sm.Best()),
		Candidates: total,
		Matches:    toMatches(cands),
		Peaks:      toMatches(peaks),
		Cached:     hit,
		Heatmap:    heatPNG,
		Detections: detPNG,
		ElapsedMs:  ms,
	}, nil
}

// Sweep renders the slider frame at alpha in [0,1].
func (e *Engine) Sweep(ctx context.Context, name string, alpha float64) (*api.SweepResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pair, err := e.pairs.Get(name)
	if err != nil {
		return nil, err
	}

	st := time.Now()
	sm, _, err := e.scoreMap(pair)
	if err != nil {
		return nil, err
	}

	info := pair.Info()
	pos := matching.SweepPosition(alpha, info.SceneSize(), info.TemplateSize())
	heat, err := render.Heatmap(sm)
	if err != nil {
		return nil, err
	}
	defer heat.Close()

	cands, _ := sm.Top(pair.Threshold, e.maxCandidates)
	frame, err := render.SweepFrame(pair.Scene, pair.Template, heat, pos, cands)
	if err != nil {
		return nil, err
	}
	defer frame.Close()
	png, err := render.EncodePNG(frame)
	if err != nil {
		return nil, err
	}

	e.metric.AddProcessingTime("sweep", elapsedMs(st))
	return &api.SweepResult{
		Pair:     name,
		Alpha:    alpha,
		Position: api.PointOf(pos),
		Score:    sm.At(pos.X, pos.Y),
		Frame:    png,
	}, nil
}
