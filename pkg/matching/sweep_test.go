package matching

import (
	"image"
	"testing"
)

func TestSweepPosition(t *testing.T) {
	scene := image.Pt(10, 8)
	templ := image.Pt(4, 3)
	// 7 columns x 6 rows of placements
	tests := []struct {
		alpha float64
		want  image.Point
	}{
		{0, image.Pt(0, 0)},
		{1, image.Pt(6, 5)},
		{-3, image.Pt(0, 0)},
		{7, image.Pt(6, 5)},
		{0.5, image.Pt(0, 3)}, // index round(0.5*41) = 21
	}
	for _, tt := range tests {
		if got := SweepPosition(tt.alpha, scene, templ); got != tt.want {
			t.Errorf("SweepPosition(%v) = %v, want %v", tt.alpha, got, tt.want)
		}
	}
}

func TestSweepPositionTemplateTooLarge(t *testing.T) {
	if got := SweepPosition(0.5, image.Pt(3, 3), image.Pt(4, 4)); got != (image.Point{}) {
		t.Errorf("Expected origin, got %v", got)
	}
}
