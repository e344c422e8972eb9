package session

import (
	"encoding/json"
	"image"

	api "github.com/etesami/template-matching-demo/api"
	"github.com/etesami/template-matching-demo/pkg/utils"
)

// FoundIoU is the overlap with the best match at which a guess counts as
// found.
const FoundIoU = 0.5

// State is the per-user view of one pair. It is a value: every transition
// returns a new State and leaves the receiver untouched.
type State struct {
	Pair         api.PairInfo
	Center       image.Point
	LastComputed image.Point
	Computed     bool
	Score        float64
	Bounds       image.Rectangle
	Quality      string
	Explanation  string
	Found        bool

	best    image.Rectangle
	hasBest bool
}

type stateJSON struct {
	Pair            api.PairInfo `json:"pair"`
	Center          api.Point    `json:"center"`
	LastComputed    api.Point    `json:"lastComputed"`
	PositionChanged bool         `json:"positionChanged"`
	Computed        bool         `json:"computed"`
	Score           float64      `json:"score"`
	Bounds          api.Box      `json:"bounds"`
	Quality         string       `json:"quality,omitempty"`
	Explanation     string       `json:"explanation,omitempty"`
	Found           bool         `json:"found"`
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(stateJSON{
		Pair:            s.Pair,
		Center:          api.PointOf(s.Center),
		LastComputed:    api.PointOf(s.LastComputed),
		PositionChanged: s.PositionChanged(),
		Computed:        s.Computed,
		Score:           s.Score,
		Bounds:          api.BoxOf(s.Bounds),
		Quality:         s.Quality,
		Explanation:     s.Explanation,
		Found:           s.Found,
	})
}

func NewState(pair api.PairInfo) State {
	c := image.Pt(pair.SceneWidth/4, pair.SceneHeight/4)
	return State{
		Pair:         pair,
		Center:       c,
		LastComputed: c,
	}
}

// MoveTo sets a new center. Coordinates are not validated; extraction clamps.
func (s State) MoveTo(p image.Point) State {
	s.Center = p
	return s
}

// PositionChanged reports whether the center moved since the last compute.
func (s State) PositionChanged() bool {
	return s.Center != s.LastComputed
}

// WithBest remembers the best match box used for found detection.
func (s State) WithBest(box image.Rectangle) State {
	s.best = box
	s.hasBest = true
	if s.Computed {
		s.Found = utils.GetIoU(s.Bounds, box) >= FoundIoU
	}
	return s
}

func (s State) Best() (image.Rectangle, bool) {
	return s.best, s.hasBest
}

// WithResult records a computed patch score for the current center.
func (s State) WithResult(res *api.PatchResult) State {
	s.Computed = true
	s.LastComputed = s.Center
	s.Score = res.Score
	s.Bounds = res.Bounds.Rect()
	s.Quality = res.Quality
	s.Explanation = res.Explanation
	s.Found = s.hasBest && utils.GetIoU(s.Bounds, s.best) >= FoundIoU
	return s
}
