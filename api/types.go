package api

import (
	"image"
	"time"
)

// Point is a pixel position with lowercase JSON keys.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func PointOf(p image.Point) Point {
	return Point{X: p.X, Y: p.Y}
}

func (p Point) Image() image.Point {
	return image.Pt(p.X, p.Y)
}

// Box is a half-open pixel rectangle [x0,x1) x [y0,y1).
type Box struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

func BoxOf(r image.Rectangle) Box {
	return Box{X0: r.Min.X, Y0: r.Min.Y, X1: r.Max.X, Y1: r.Max.Y}
}

func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X0, b.Y0, b.X1, b.Y1)
}

// PairInfo describes a registered template/scene pair without the pixels.
type PairInfo struct {
	Name           string  `json:"name"`
	TemplateWidth  int     `json:"templateWidth"`
	TemplateHeight int     `json:"templateHeight"`
	SceneWidth     int     `json:"sceneWidth"`
	SceneHeight    int     `json:"sceneHeight"`
	Threshold      float64 `json:"threshold"`
}

func (p PairInfo) TemplateSize() image.Point {
	return image.Pt(p.TemplateWidth, p.TemplateHeight)
}

func (p PairInfo) SceneSize() image.Point {
	return image.Pt(p.SceneWidth, p.SceneHeight)
}

// PatchResult is the outcome of scoring the template against the patch
// centered at Center.
type PatchResult struct {
	Pair        string  `json:"pair"`
	Center      Point   `json:"center"`
	Bounds      Box     `json:"bounds"`
	Score       float64 `json:"score"`
	Quality     string  `json:"quality"`
	Explanation string  `json:"explanation"`
	Comparison  []byte  `json:"-"` // PNG, template left, patch right
	ElapsedMs   float64 `json:"elapsedMs"`
}

// Match is a thresholded placement of the template's top-left corner.
type Match struct {
	X     int     `json:"x"`
	Y     int     `json:"y"`
	Score float64 `json:"score"`
}

// MapResult summarizes a full score map.
type MapResult struct {
	Pair       string  `json:"pair"`
	Rows       int     `json:"rows"`
	Cols       int     `json:"cols"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Threshold  float64 `json:"threshold"`
	Best       Match   `json:"best"`
	Candidates int     `json:"candidates"`
	Matches    []Match `json:"matches"`
	Peaks      []Match `json:"peaks"`
	Cached     bool    `json:"cached"`
	Heatmap    []byte  `json:"-"` // PNG
	Detections []byte  `json:"-"` // PNG
	ElapsedMs  float64 `json:"elapsedMs"`
}

// SweepResult is one frame of the slider visualization.
type SweepResult struct {
	Pair     string  `json:"pair"`
	Alpha    float64 `json:"alpha"`
	Position Point   `json:"position"`
	Score    float64 `json:"score"`
	Frame    []byte  `json:"-"` // PNG
}

// Attempt is a scored guess persisted in the history store.
type Attempt struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"sessionId"`
	Pair      string    `json:"pair"`
	Center    Point     `json:"center"`
	Bounds    Box       `json:"bounds"`
	Score     float64   `json:"score"`
	Quality   string    `json:"quality"`
	Found     bool      `json:"found"`
	CreatedAt time.Time `json:"createdAt"`
}

// PairSummary aggregates the attempts made on one pair.
type PairSummary struct {
	Pair     string  `json:"pair"`
	Attempts int     `json:"attempts"`
	Found    int     `json:"found"`
	Best     float64 `json:"best"`
	Average  float64 `json:"average"`
}
