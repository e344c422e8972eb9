package matching

import (
	"image"
	"math"
	"testing"
)

func TestScoreMapNormalized(t *testing.T) {
	sm := &ScoreMap{Rows: 1, Cols: 3, Data: []float32{-0.5, 0, 0.5}}
	got := sm.Normalized()
	want := []float64{0, 0.5, 1}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-6 {
			t.Errorf("Normalized()[%d] = %f, want %f", i, got[i], want[i])
		}
	}

	flat := &ScoreMap{Rows: 2, Cols: 2, Data: []float32{0.3, 0.3, 0.3, 0.3}}
	for i, v := range flat.Normalized() {
		if v != 0 {
			t.Errorf("Flat map normalized[%d] = %f, want 0", i, v)
		}
	}
}

func TestScoreMapTopOrder(t *testing.T) {
	sm := &ScoreMap{Rows: 2, Cols: 3, Data: []float32{0.1, 0.7, 0.2, 0.9, 0.3, 0.65}}
	got, total := sm.Top(0.6, 10)
	want := []Candidate{
		{Location: image.Pt(1, 0), Score: float64(float32(0.7))},
		{Location: image.Pt(0, 1), Score: float64(float32(0.9))},
		{Location: image.Pt(2, 1), Score: float64(float32(0.65))},
	}
	if total != 3 || len(got) != len(want) {
		t.Fatalf("Expected %d candidates, got %v (%d)", len(want), got, total)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Candidate %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if box := got[1].Box(image.Pt(4, 3)); box != image.Rect(0, 1, 4, 4) {
		t.Errorf("Unexpected box %v", box)
	}

	lo, hi := sm.MinMax()
	if math.Abs(lo-0.1) > 1e-6 || math.Abs(hi-0.9) > 1e-6 {
		t.Errorf("MinMax = (%f, %f)", lo, hi)
	}
	if b := sm.Best(); b.Location != image.Pt(0, 1) {
		t.Errorf("Best at %v, want (0,1)", b.Location)
	}
}

func TestScoreMapTop(t *testing.T) {
	sm := &ScoreMap{Rows: 4, Cols: 5, Data: make([]float32, 20)}
	for i := range sm.Data {
		sm.Data[i] = 0.5
	}
	sm.Data[3*5+1] = 0.9
	sm.Data[0*5+4] = 0.8
	sm.Data[2*5+2] = 0.7

	top, total := sm.Top(0.5, 3)
	if total != 20 {
		t.Errorf("Expected 20 qualifying placements, got %d", total)
	}
	want := []image.Point{image.Pt(4, 0), image.Pt(2, 2), image.Pt(1, 3)}
	if len(top) != len(want) {
		t.Fatalf("Expected %d candidates, got %d: %v", len(want), len(top), top)
	}
	for i, c := range top {
		if c.Location != want[i] {
			t.Errorf("Candidate %d at %v, want %v", i, c.Location, want[i])
		}
	}

	// Ties keep the earliest row-major placements.
	top, _ = sm.Top(0.5, 5)
	if len(top) != 5 || top[0].Location != image.Pt(0, 0) || top[1].Location != image.Pt(1, 0) {
		t.Errorf("Unexpected tie handling %v", top)
	}

	if top, total := sm.Top(0.95, 3); len(top) != 0 || total != 0 {
		t.Errorf("Expected nothing above 0.95, got %v (%d)", top, total)
	}
	if top, total := sm.Top(0.0, 0); len(top) != 0 || total != 20 {
		t.Errorf("Expected zero limit to count only, got %v (%d)", top, total)
	}
}

func TestScoreMapTopBoundedAtLowThreshold(t *testing.T) {
	sm := &ScoreMap{Rows: 300, Cols: 300, Data: make([]float32, 300*300)}
	for i := range sm.Data {
		sm.Data[i] = float32(i%997) / 997
	}
	top, total := sm.Top(-1, 50)
	if total != len(sm.Data) {
		t.Errorf("Expected every placement to qualify, got %d", total)
	}
	if len(top) != 50 {
		t.Fatalf("Expected 50 candidates, got %d", len(top))
	}
	for _, c := range top {
		if c.Score < 990.0/997 {
			t.Errorf("Weak candidate %v kept", c)
		}
	}
	if peaks := Suppress(top, image.Pt(5, 5), 0.3); len(peaks) > len(top) {
		t.Errorf("Suppress grew %d candidates to %d", len(top), len(peaks))
	}
}

func TestSuppress(t *testing.T) {
	sm := &ScoreMap{Rows: 10, Cols: 10, Data: make([]float32, 100)}
	sm.Data[2*10+2] = 0.9
	sm.Data[2*10+3] = 0.8
	sm.Data[8*10+8] = 0.7

	top, _ := sm.Top(0.6, 10)
	peaks := Suppress(top, image.Pt(3, 3), 0.3)
	if len(peaks) != 2 {
		t.Fatalf("Expected 2 peaks, got %d: %v", len(peaks), peaks)
	}
	if peaks[0].Location != image.Pt(2, 2) || peaks[1].Location != image.Pt(8, 8) {
		t.Errorf("Unexpected peaks %v", peaks)
	}

	if got := Suppress(nil, image.Pt(3, 3), 0.3); got != nil {
		t.Errorf("Expected no peaks, got %v", got)
	}
}
