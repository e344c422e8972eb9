package matching

import (
	"container/heap"
	"image"
	"sort"

	"gocv.io/x/gocv"
)

// DefaultThreshold is the score at or above which a placement counts as a
// candidate match.
const DefaultThreshold = 0.6

// ScoreMap holds one correlation score per top-left placement of a template
// inside a scene, row-major.
type ScoreMap struct {
	Rows int
	Cols int
	Data []float32
}

// Candidate is a placement whose score passed a threshold.
type Candidate struct {
	Location image.Point
	Score    float64
}

// Box returns the template-sized rectangle anchored at the candidate.
func (c Candidate) Box(size image.Point) image.Rectangle {
	return image.Rectangle{Min: c.Location, Max: c.Location.Add(size)}
}

// At returns the score for the placement with top-left corner (x, y).
func (m *ScoreMap) At(x, y int) float64 {
	return float64(m.Data[y*m.Cols+x])
}

func (m *ScoreMap) MinMax() (float64, float64) {
	if len(m.Data) == 0 {
		return 0, 0
	}
	lo, hi := m.Data[0], m.Data[0]
	for _, v := range m.Data[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return float64(lo), float64(hi)
}

// Normalized rescales the map to [0,1] using its own min and max.
// A flat map normalizes to all zeros.
func (m *ScoreMap) Normalized() []float64 {
	out := make([]float64, len(m.Data))
	lo, hi := m.MinMax()
	span := hi - lo
	if span <= 0 {
		return out
	}
	for i, v := range m.Data {
		out[i] = (float64(v) - lo) / span
	}
	return out
}

// Best returns the highest scoring placement. Ties keep the first in
// row-major order.
func (m *ScoreMap) Best() Candidate {
	best := Candidate{Score: -1}
	for i, v := range m.Data {
		if float64(v) > best.Score {
			best = Candidate{Location: image.Pt(i%m.Cols, i/m.Cols), Score: float64(v)}
		}
	}
	return best
}

// weaker orders candidates by score; on equal scores the later row-major
// placement is the weaker one.
func weaker(a, b Candidate) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	if a.Location.Y != b.Location.Y {
		return a.Location.Y > b.Location.Y
	}
	return a.Location.X > b.Location.X
}

// candHeap is a min-heap with the weakest kept candidate at the root.
type candHeap []Candidate

func (h candHeap) Len() int           { return len(h) }
func (h candHeap) Less(i, j int) bool { return weaker(h[i], h[j]) }
func (h candHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *candHeap) Push(x any)        { *h = append(*h, x.(Candidate)) }
func (h *candHeap) Pop() any {
	old := *h
	c := old[len(old)-1]
	*h = old[:len(old)-1]
	return c
}

// Top returns the strongest limit placements scoring at or above threshold,
// in row-major order, together with the total number that qualified. Memory
// is bounded by limit regardless of how many placements pass.
func (m *ScoreMap) Top(threshold float64, limit int) ([]Candidate, int) {
	total := 0
	h := make(candHeap, 0, max(0, min(limit, len(m.Data))))
	for i, v := range m.Data {
		if float64(v) < threshold {
			continue
		}
		total++
		if limit < 1 {
			continue
		}
		c := Candidate{Location: image.Pt(i%m.Cols, i/m.Cols), Score: float64(v)}
		if len(h) < limit {
			heap.Push(&h, c)
		} else if weaker(h[0], c) {
			h[0] = c
			heap.Fix(&h, 0)
		}
	}
	out := []Candidate(h)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Location, out[j].Location
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
	return out, total
}

// Suppress collapses overlapping candidate boxes with non-maximum
// suppression, keeping the strongest of each cluster. overlap is the IoU
// above which two boxes are merged. Peaks come back strongest first.
func Suppress(cands []Candidate, size image.Point, overlap float64) []Candidate {
	if len(cands) == 0 {
		return nil
	}
	boxes := make([]image.Rectangle, len(cands))
	scores := make([]float32, len(cands))
	for i, c := range cands {
		boxes[i] = c.Box(size)
		scores[i] = float32(c.Score)
	}
	// NMSBoxes keeps scores strictly above its threshold; cands are already
	// thresholded, so pass a floor below any correlation.
	indices := gocv.NMSBoxes(boxes, scores, -2, float32(overlap))
	peaks := make([]Candidate, 0, len(indices))
	for _, idx := range indices {
		peaks = append(peaks, cands[idx])
	}
	return peaks
}
