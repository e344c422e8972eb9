package rpc

import (
	"encoding/base64"
	"fmt"
	"image"

	api "github.com/etesami/template-matching-demo/api"
	"google.golang.org/protobuf/types/known/structpb"
)

// Messages travel as google.protobuf.Struct. Numbers are float64 on the
// wire and byte payloads are base64 strings.

func num(m map[string]any, key string) float64 {
	if v, ok := m[key].(float64); ok {
		return v
	}
	return 0
}

func integer(m map[string]any, key string) int {
	return int(num(m, key))
}

func str(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func flag(m map[string]any, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}

func object(m map[string]any, key string) map[string]any {
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	return map[string]any{}
}

func blob(m map[string]any, key string) ([]byte, error) {
	s := str(m, key)
	if s == "" {
		return nil, nil
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", key, err)
	}
	return b, nil
}

func pointValue(p api.Point) map[string]any {
	return map[string]any{"x": p.X, "y": p.Y}
}

func pointOf(m map[string]any) api.Point {
	return api.Point{X: integer(m, "x"), Y: integer(m, "y")}
}

func boxValue(b api.Box) map[string]any {
	return map[string]any{"x0": b.X0, "y0": b.Y0, "x1": b.X1, "y1": b.Y1}
}

func boxOf(m map[string]any) api.Box {
	return api.Box{X0: integer(m, "x0"), Y0: integer(m, "y0"), X1: integer(m, "x1"), Y1: integer(m, "y1")}
}

func matchValue(m api.Match) map[string]any {
	return map[string]any{"x": m.X, "y": m.Y, "score": m.Score}
}

func matchOf(m map[string]any) api.Match {
	return api.Match{X: integer(m, "x"), Y: integer(m, "y"), Score: num(m, "score")}
}

func matchesValue(ms []api.Match) []any {
	out := make([]any, 0, len(ms))
	for _, m := range ms {
		out = append(out, matchValue(m))
	}
	return out
}

func matchesOf(m map[string]any, key string) []api.Match {
	list, _ := m[key].([]any)
	out := make([]api.Match, 0, len(list))
	for _, item := range list {
		if mm, ok := item.(map[string]any); ok {
			out = append(out, matchOf(mm))
		}
	}
	return out
}

// Requests

func NewListPairsRequest() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{}}
}

func NewScorePatchRequest(pair string, center image.Point) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"pair": pair, "x": center.X, "y": center.Y})
}

func ParseScorePatchRequest(s *structpb.Struct) (string, image.Point, error) {
	m := s.AsMap()
	pair := str(m, "pair")
	if pair == "" {
		return "", image.Point{}, fmt.Errorf("pair is required")
	}
	return pair, pointOf(m).Image(), nil
}

func NewScoreMapRequest(pair string, threshold float64) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"pair": pair, "threshold": threshold})
}

func ParseScoreMapRequest(s *structpb.Struct) (string, float64, error) {
	m := s.AsMap()
	pair := str(m, "pair")
	if pair == "" {
		return "", 0, fmt.Errorf("pair is required")
	}
	return pair, num(m, "threshold"), nil
}

func NewBestMatchRequest(pair string) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"pair": pair})
}

func ParseBestMatchRequest(s *structpb.Struct) (string, error) {
	pair := str(s.AsMap(), "pair")
	if pair == "" {
		return "", fmt.Errorf("pair is required")
	}
	return pair, nil
}

func NewSweepRequest(pair string, alpha float64) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"pair": pair, "alpha": alpha})
}

func ParseSweepRequest(s *structpb.Struct) (string, float64, error) {
	m := s.AsMap()
	pair := str(m, "pair")
	if pair == "" {
		return "", 0, fmt.Errorf("pair is required")
	}
	return pair, num(m, "alpha"), nil
}

// Responses

func EncodePairs(pairs []api.PairInfo) (*structpb.Struct, error) {
	list := make([]any, 0, len(pairs))
	for _, p := range pairs {
		list = append(list, map[string]any{
			"name":           p.Name,
			"templateWidth":  p.TemplateWidth,
			"templateHeight": p.TemplateHeight,
			"sceneWidth":     p.SceneWidth,
			"sceneHeight":    p.SceneHeight,
			"threshold":      p.Threshold,
		})
	}
	return structpb.NewStruct(map[string]any{"pairs": list})
}

func DecodePairs(s *structpb.Struct) []api.PairInfo {
	list, _ := s.AsMap()["pairs"].([]any)
	out := make([]api.PairInfo, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, api.PairInfo{
			Name:           str(m, "name"),
			TemplateWidth:  integer(m, "templateWidth"),
			TemplateHeight: integer(m, "templateHeight"),
			SceneWidth:     integer(m, "sceneWidth"),
			SceneHeight:    integer(m, "sceneHeight"),
			Threshold:      num(m, "threshold"),
		})
	}
	return out
}

func EncodePatchResult(r *api.PatchResult) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"pair":        r.Pair,
		"center":      pointValue(r.Center),
		"bounds":      boxValue(r.Bounds),
		"score":       r.Score,
		"quality":     r.Quality,
		"explanation": r.Explanation,
		"comparison":  r.Comparison,
		"elapsedMs":   r.ElapsedMs,
	})
}

func DecodePatchResult(s *structpb.Struct) (*api.PatchResult, error) {
	m := s.AsMap()
	cmp, err := blob(m, "comparison")
	if err != nil {
		return nil, err
	}
	return &api.PatchResult{
		Pair:        str(m, "pair"),
		Center:      pointOf(object(m, "center")),
		Bounds:      boxOf(object(m, "bounds")),
		Score:       num(m, "score"),
		Quality:     str(m, "quality"),
		Explanation: str(m, "explanation"),
		Comparison:  cmp,
		ElapsedMs:   num(m, "elapsedMs"),
	}, nil
}

func EncodeMapResult(r *api.MapResult) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"pair":       r.Pair,
		"rows":       r.Rows,
		"cols":       r.Cols,
		"min":        r.Min,
		"max":        r.Max,
		"threshold":  r.Threshold,
		"best":       matchValue(r.Best),
		"candidates": r.Candidates,
		"matches":    matchesValue(r.Matches),
		"peaks":      matchesValue(r.Peaks),
		"cached":     r.Cached,
		"heatmap":    r.Heatmap,
		"detections": r.Detections,
		"elapsedMs":  r.ElapsedMs,
	})
}

func DecodeMapResult(s *structpb.Struct) (*api.MapResult, error) {
	m := s.AsMap()
	heat, err := blob(m, "heatmap")
	if err != nil {
		return nil, err
	}
	det, err := blob(m, "detections")
	if err != nil {
		return nil, err
	}
	return &api.MapResult{
		Pair:       str(m, "pair"),
		Rows:       integer(m, "rows"),
		Cols:       integer(m, "cols"),
		Min:        num(m, "min"),
		Max:        num(m, "max"),
		Threshold:  num(m, "threshold"),
		Best:       matchOf(object(m, "best")),
		Candidates: integer(m, "candidates"),
		Matches:    matchesOf(m, "matches"),
		Peaks:      matchesOf(m, "peaks"),
		Cached:     flag(m, "cached"),
		Heatmap:    heat,
		Detections: det,
		ElapsedMs:  num(m, "elapsedMs"),
	}, nil
}

func EncodeSweepResult(r *api.SweepResult) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"pair":     r.Pair,
		"alpha":    r.Alpha,
		"position": pointValue(r.Position),
		"score":    r.Score,
		"frame":    r.Frame,
	})
}

func DecodeSweepResult(s *structpb.Struct) (*api.SweepResult, error) {
	m := s.AsMap()
	frame, err := blob(m, "frame")
	if err != nil {
		return nil, err
	}
	return &api.SweepResult{
		Pair:     str(m, "pair"),
		Alpha:    num(m, "alpha"),
		Position: pointOf(object(m, "position")),
		Score:    num(m, "score"),
		Frame:    frame,
	}, nil
}

func EncodeMatch(m api.Match) (*structpb.Struct, error) {
	return structpb.NewStruct(matchValue(m))
}

func DecodeMatch(s *structpb.Struct) api.Match {
	return matchOf(s.AsMap())
}
